// seed inserts development sample data for local testing: one org with an admin, a leader and a
// member, one team, and a project owned by the admin. It prints an access token for the admin.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"collab-control-plane/backend/internal/cascade"
	"collab-control-plane/backend/internal/config"
	"collab-control-plane/backend/internal/db"
	"collab-control-plane/backend/internal/security"
	"collab-control-plane/backend/internal/store"
	"collab-control-plane/backend/internal/store/postgres"
	"collab-control-plane/backend/internal/txn"
)

const (
	devPassword  = "password123"
	devUserEmail = "dev@example.com"
	devUserID    = "dev-user-001"
	leadUserID   = "dev-user-002"
	memberUserID = "dev-user-003"
	devOrgID     = "dev-org-001"
	devTeamID    = "dev-team-001"
	devProjectID = "dev-project-001"
	leadEmail    = "lead@example.com"
	memberEmail  = "member@example.com"
)

type step struct {
	op   string
	plan txn.PlanFunc
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL, db.Pool{})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	st := postgres.New(conn)
	defer st.Close()

	if _, err := st.GetUserByEmail(ctx, devUserEmail); err == nil {
		log.Printf("dev user %s already exists; skipping seed", devUserEmail)
		printToken(cfg)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Fatalf("lookup dev user: %v", err)
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	coordinator, err := txn.New(st, zap.NewNop(), txn.Options{Timeout: 30 * time.Second})
	if err != nil {
		log.Fatalf("txn: %v", err)
	}

	now := time.Now().UTC()
	user := func(id, email, name string) step {
		return step{"register " + email, func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
			return cascade.RegisterUser(ctx, r, cascade.RegisterUserInput{
				UserID: id, Email: email, UserName: name, PasswordHash: hash, Now: now,
			})
		}}
	}
	steps := []step{
		user(devUserID, devUserEmail, "Dev Admin"),
		user(leadUserID, leadEmail, "Dev Lead"),
		user(memberUserID, memberEmail, "Dev Member"),
		{"create org", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
			return cascade.CreateOrganization(ctx, r, cascade.CreateOrganizationInput{
				OrgID: devOrgID, Name: "Dev Org", ActorID: devUserID, Now: now,
			})
		}},
		{"add lead", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
			return cascade.AddOrgMember(ctx, r, cascade.AddOrgMemberInput{OrgID: devOrgID, MemberID: leadUserID, AsRoleOf: "leader"})
		}},
		{"add member", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
			return cascade.AddOrgMember(ctx, r, cascade.AddOrgMemberInput{OrgID: devOrgID, MemberID: memberUserID})
		}},
		{"create team", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
			return cascade.CreateTeam(ctx, r, cascade.CreateTeamInput{
				TeamID: devTeamID, OrgID: devOrgID, Name: "Dev Team", ActorID: devUserID, Now: now,
			})
		}},
		{"add team member", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
			return cascade.AddTeamMember(ctx, r, cascade.AddTeamMemberInput{TeamID: devTeamID, MemberID: memberUserID})
		}},
		{"create project", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
			return cascade.CreateProject(ctx, r, cascade.CreateProjectInput{
				ProjectID: devProjectID, OrgID: devOrgID, ActorID: devUserID,
				Name: "Dev Project", Description: "Seeded project", Now: now,
			})
		}},
	}
	for _, s := range steps {
		if _, err := coordinator.Execute(ctx, s.op, s.plan); err != nil {
			log.Fatalf("%s: %v", s.op, err)
		}
	}

	log.Printf("seeded org %s, team %s, project %s; users %s, %s, %s (password %q)",
		devOrgID, devTeamID, devProjectID, devUserEmail, leadEmail, memberEmail, devPassword)
	printToken(cfg)
}

// printToken prints an access token for the dev admin when JWT keys are configured.
func printToken(cfg *config.Config) {
	if cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "" {
		return
	}
	priv, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		log.Printf("jwt keys: %v", err)
		return
	}
	token, _, exp, err := security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL()).IssueAccess(devUserID, devUserEmail)
	if err != nil {
		log.Printf("issue token: %v", err)
		return
	}
	fmt.Printf("dev access token (expires %s):\n%s\n", exp.Format(time.RFC3339), token)
}
