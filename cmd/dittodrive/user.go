package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/accounts"
	"github.com/marmos91/dittodrive/pkg/audit"
	"github.com/marmos91/dittodrive/pkg/config"
	"github.com/marmos91/dittodrive/pkg/server"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// operator is the actor of CLI commands. Whoever can read the config file
// and open the stores is trusted as an admin.
var operator = access.Actor{ID: uuid.Nil, Role: metadata.RoleAdmin}

const userUsage = `Usage:
  dittodrive user add --username NAME --email EMAIL [--admin] [--quota BYTES]
  dittodrive user list
  dittodrive user quota USERNAME BYTES
  dittodrive user reconcile USERNAME
`

// openDrive loads the config, opens the stores and returns the engines plus
// a close function.
func openDrive(ctx context.Context, path string) (*server.Drive, func(), error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, nil, err
	}

	m := config.InitializeMetrics(&config.Config{}, nil)
	metadataStore, contentStore, err := stores(ctx, cfg, m)
	if err != nil {
		return nil, nil, err
	}

	closeAll := func() {
		_ = contentStore.Close()
		_ = metadataStore.Close()
	}
	return server.NewDrive(metadataStore, contentStore, driveOptions(cfg, m)), closeAll, nil
}

func runUser(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, userUsage)
		return fmt.Errorf("missing user subcommand")
	}

	switch args[0] {
	case "add":
		return runUserAdd(ctx, args[1:])
	case "list":
		return runUserList(ctx, args[1:])
	case "quota":
		return runUserQuota(ctx, args[1:])
	case "reconcile":
		return runUserReconcile(ctx, args[1:])
	default:
		fmt.Fprint(os.Stderr, userUsage)
		return fmt.Errorf("unknown user subcommand %q", args[0])
	}
}

func runUserAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user add", flag.ExitOnError)
	path := configFlag(fs)
	username := fs.String("username", "", "Account username")
	email := fs.String("email", "", "Account email")
	admin := fs.Bool("admin", false, "Grant the admin role")
	quota := fs.Int64("quota", 0, "Storage quota in bytes (default: drive.default_quota)")
	_ = fs.Parse(args)

	drive, closeAll, err := openDrive(ctx, *path)
	if err != nil {
		return err
	}
	defer closeAll()

	user, err := drive.Accounts.Register(ctx, accounts.Registration{Username: *username, Email: *email})
	if err != nil {
		return err
	}

	var update accounts.UserUpdate
	if *admin {
		role := metadata.RoleAdmin
		update.Role = &role
	}
	if *quota > 0 {
		update.StorageQuota = quota
	}
	if update.Role != nil || update.StorageQuota != nil {
		if user, err = drive.Accounts.Update(ctx, operator, user.ID, update); err != nil {
			return err
		}
	}

	_ = drive.Audit.Log(ctx, nil, audit.ActionRegister, "user "+user.Username+" created", "cli")
	fmt.Printf("Created user %s (%s) role=%s quota=%d\n", user.Username, user.ID, user.Role, user.StorageQuota)
	return nil
}

func runUserList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user list", flag.ExitOnError)
	path := configFlag(fs)
	_ = fs.Parse(args)

	drive, closeAll, err := openDrive(ctx, *path)
	if err != nil {
		return err
	}
	defer closeAll()

	users, err := drive.Accounts.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tUSED\tQUOTA")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n", u.ID, u.Username, u.Email, u.Role, u.StorageUsed, u.StorageQuota)
	}
	return w.Flush()
}

func runUserQuota(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user quota", flag.ExitOnError)
	path := configFlag(fs)
	_ = fs.Parse(args)

	if fs.NArg() != 2 {
		return fmt.Errorf("usage: dittodrive user quota USERNAME BYTES")
	}
	bytes, err := strconv.ParseInt(fs.Arg(1), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid quota %q: %w", fs.Arg(1), err)
	}

	drive, closeAll, err := openDrive(ctx, *path)
	if err != nil {
		return err
	}
	defer closeAll()

	user, err := drive.Accounts.GetByUsername(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if err := drive.Quota.SetQuota(ctx, operator.Role, user.ID, bytes); err != nil {
		return err
	}

	_ = drive.Audit.Log(ctx, nil, audit.ActionUserUpdate, fmt.Sprintf("quota of %s set to %d", user.Username, bytes), "cli")

	usage, err := drive.Quota.Usage(ctx, user.ID)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d / %d bytes used (%.1f%%)\n", user.Username, usage.Used, usage.Quota, usage.Percent)
	return nil
}

func runUserReconcile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("user reconcile", flag.ExitOnError)
	path := configFlag(fs)
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: dittodrive user reconcile USERNAME")
	}

	drive, closeAll, err := openDrive(ctx, *path)
	if err != nil {
		return err
	}
	defer closeAll()

	user, err := drive.Accounts.GetByUsername(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	drift, err := drive.Quota.Reconcile(ctx, user.ID)
	if err != nil {
		return err
	}

	if drift == 0 {
		fmt.Printf("%s: usage consistent\n", user.Username)
	} else {
		fmt.Printf("%s: corrected usage drift of %d bytes\n", user.Username, drift)
	}
	return nil
}
