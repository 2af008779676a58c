// This script is a small convenience tool for creating user accounts in the
// configured server database.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sethcallen/harbinger/internal/core"
	"github.com/sethcallen/harbinger/internal/core/auth"
	"github.com/sethcallen/harbinger/internal/core/data"
)

var configFlag = flag.String("config", "./", "Path to the directory containing the server config file")

func main() {
	flag.Parse()

	config := core.LoadConfig(*configFlag)

	db, err := data.Initialize(config.DatabaseURL(), config.Debugging.DatabaseLoggingEnabled)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer func() { _ = data.Shutdown(db) }()

	scanner := bufio.NewScanner(os.Stdin)

	fmt.Printf("Username: ")
	scanner.Scan()
	username := scanner.Text()

	fmt.Printf("Password: ")
	scanner.Scan()
	password := scanner.Text()

	if username == "" || password == "" {
		fmt.Println("username and password are required")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Println("failed to hash password:", err)
		os.Exit(1)
	}

	account := &data.Account{
		Username:         username,
		Password:         hash,
		RegistrationDate: time.Now(),
	}
	if err := data.CreateAccount(db, account); err != nil {
		fmt.Println("failed to create account:", err)
		os.Exit(1)
	}
	fmt.Println("created account with ID", account.ID)
}
