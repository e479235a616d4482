// Command userplan is an operator tool that changes an account's plan tier
// and credit balance directly in the database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	var (
		idFlag      string
		emailFlag   string
		planFlag    string
		creditsFlag int
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.StringVar(&planFlag, "plan", "pro", "plan tier to assign (free, pro)")
	flag.IntVar(&creditsFlag, "credits", -1, "credit balance to set (negative keeps the current value)")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(strings.ToLower(emailFlag))
	plan := strings.TrimSpace(strings.ToLower(planFlag))

	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	switch plan {
	case "free", "pro":
	default:
		exitWithError(fmt.Errorf("unsupported plan %q", plan))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	query := `
UPDATE users
SET plan_tier = $2,
    credits = CASE WHEN $3 >= 0 THEN $3 ELSE credits END
WHERE ($1 <> '' AND id::text = $1) OR ($1 = '' AND email = $4)
RETURNING id, email, plan_tier, credits;
`
	row := pool.QueryRow(ctx, query, userID, plan, creditsFlag, email)

	var (
		updatedID      string
		updatedEmail   string
		updatedPlan    string
		updatedCredits int
	)
	if err := row.Scan(&updatedID, &updatedEmail, &updatedPlan, &updatedCredits); err != nil {
		exitWithError(fmt.Errorf("failed to update user: %w", err))
	}

	fmt.Printf("User %s (%s) updated to plan %s with %d credits\n",
		updatedID, updatedEmail, updatedPlan, updatedCredits)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
