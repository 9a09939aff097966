package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/coverpilothq/coverpilot/internal/pkg/accounts"
	"github.com/coverpilothq/coverpilot/internal/pkg/database"
	"github.com/coverpilothq/coverpilot/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	database.SetupDatabase()
	svc := accounts.NewServiceFromDB(database.GetDB())

	switch os.Args[1] {
	case "create":
		requireArgs(4, "create <name> <email> <password>")
		user, err := svc.Register(os.Args[2], os.Args[3], os.Args[4])
		if err != nil {
			if errors.Is(err, accounts.ErrEmailTaken) {
				log.Fatalf("Account %s already exists", os.Args[3])
			}
			log.Fatalf("Failed to create account: %v", err)
		}
		log.Printf("Account created: id=%d email=%s", user.ID, user.Email)

	case "issue-key":
		requireArgs(2, "issue-key <email>")
		rawKey, err := svc.IssueAPIKey(os.Args[2])
		if err != nil {
			log.Fatalf("Failed to issue API key: %v", err)
		}
		// The raw key is shown exactly once; only its hash is stored.
		fmt.Println(rawKey)

	case "revoke-key":
		requireArgs(2, "revoke-key <email>")
		if err := svc.RevokeAPIKey(os.Args[2]); err != nil {
			log.Fatalf("Failed to revoke API key: %v", err)
		}
		log.Printf("API key revoked for %s", os.Args[2])

	case "passwd":
		requireArgs(4, "passwd <email> <current> <new>")
		if err := svc.ChangePassword(os.Args[2], os.Args[3], os.Args[4]); err != nil {
			log.Fatalf("Failed to change password: %v", err)
		}
		log.Printf("Password changed for %s", os.Args[2])

	case "delete":
		requireArgs(2, "delete <email>")
		if err := svc.Delete(os.Args[2]); err != nil {
			log.Fatalf("Failed to delete account: %v", err)
		}
		log.Printf("Account %s deleted", os.Args[2])

	case "show":
		requireArgs(2, "show <id>")
		id, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("Invalid account id: %v", err)
		}
		user, us, err := svc.Lookup(uint(id))
		if err != nil {
			log.Fatalf("Failed to look up account: %v", err)
		}
		log.Printf("id=%d name=%q email=%s role=%s status=%s plan=%s api_key=%v",
			user.ID, user.Name, user.Email, user.Role, user.Status, us.Plan, us.HasActiveAPIKey())

	case "count":
		count, err := svc.Count()
		if err != nil {
			log.Fatalf("Failed to count accounts: %v", err)
		}
		log.Printf("Accounts: %d", count)

	default:
		printUsage()
		os.Exit(1)
	}
}

func requireArgs(n int, usage string) {
	if len(os.Args) < n+1 {
		log.Fatalf("Usage: useradmin %s", usage)
	}
}

func printUsage() {
	fmt.Println("Usage: useradmin <command>")
	fmt.Println("Commands:")
	fmt.Println("  create <name> <email> <password>  Create an account")
	fmt.Println("  issue-key <email>                 Issue a new API key (prints it once)")
	fmt.Println("  revoke-key <email>                Revoke the account's API key")
	fmt.Println("  passwd <email> <current> <new>    Change the account password")
	fmt.Println("  delete <email>                    Delete an account")
	fmt.Println("  show <id>                         Show an account")
	fmt.Println("  count                             Count accounts")
}
