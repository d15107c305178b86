package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/RobertHaas/AdDesk/app/models"
	"github.com/RobertHaas/AdDesk/internal/pkg/database"
	"github.com/RobertHaas/AdDesk/internal/pkg/env"
)

// adduser seeds dashboard accounts. The webhook pipeline only credits
// accounts that already exist, so operators create them here.
func main() {
	env.SetupEnvFile()

	if len(os.Args) < 4 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	email := strings.ToLower(strings.TrimSpace(os.Args[2]))
	password := os.Args[3]

	user, err := models.CreateUser(name, email, password)
	if err != nil {
		log.Fatalf("Failed to build user: %v", err)
	}
	user.Status = models.STATUS_ACTIVE

	database.SetupDatabase()
	if err := database.GetDB().Create(user).Error; err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}
	log.Printf("Created user %d (%s)", user.ID, user.Email)
}

func printUsage() {
	fmt.Println("Usage: adduser <name> <email> <password>")
}
