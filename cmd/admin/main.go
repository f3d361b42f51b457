package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tendant/sealed-content/pkg/sealedcontent"
	"github.com/tendant/sealed-content/pkg/sealedcontent/admin"
	"github.com/tendant/sealed-content/pkg/sealedcontent/config"
)

const usage = `Sealed Content Admin CLI

Operator tool for the sealed content store. It works on metadata and
encrypted payloads only; it can never decrypt a file.

USAGE:
  admin <command> [options]

COMMANDS:
  list            List objects with optional filtering
  stats           Show aggregated statistics
  accounts        List accounts
  purge-orphans   Delete objects that no account owns
  delete-account  Remove an account
  register        Create an account
  migrate         Apply database migrations (postgres only)

ENVIRONMENT VARIABLES:
  DATABASE_URL      memory, postgres://... or bolt:///path/to/meta.db
  DATABASE_SCHEMA   PostgreSQL schema name (default: sealed)
  STORAGE_URL       memory://, file:///path or s3://bucket?region=...

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

EXAMPLES:
  admin list --owner-id=550e8400-e29b-41d4-a716-446655440000
  admin list --content-type=image/png --limit=10 --offset=0
  admin stats --json
  admin purge-orphans --dry-run
  admin delete-account --username=bob --cascade
  admin register --username=alice --password=Passw0rdX --admin

OPTIONS:
  --owner-id=<uuid>        Filter by owner ID (list)
  --content-type=<type>    Filter by content type (list)
  --limit=<n>              Maximum results (list, default: 100)
  --offset=<n>             Pagination offset (list, default: 0)
  --dry-run                Report only (purge-orphans)
  --username=<name>        Account name (delete-account, register)
  --password=<password>    Account password (register)
  --cascade                Delete the account's objects too (delete-account)
  --admin                  Grant admin privilege (register)
  --json                   Output as JSON
`

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage + "\n")
		os.Exit(0)
	}

	ctx := context.Background()

	cfg, err := config.Load(config.WithEnv(""), config.WithEventLogging(false))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if command == "migrate" {
		if cfg.DatabaseType != "postgres" {
			log.Fatalf("migrate requires a postgres DATABASE_URL")
		}
		cfg.RunMigrations = true
	}

	rt, err := cfg.Build(ctx)
	if err != nil {
		log.Fatalf("Failed to build runtime: %v", err)
	}
	defer rt.Close()

	if err := run(ctx, rt, command, os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, errUnknownCommand) {
			fmt.Printf("Unknown command: %s\n\n", command)
			fmt.Print(usage + "\n")
			rt.Close()
			os.Exit(1)
		}
		log.Printf("%s failed: %v", command, err)
		rt.Close()
		os.Exit(1)
	}
}

var errUnknownCommand = errors.New("unknown command")

// options are the parsed --key=value flags of one invocation
type options struct {
	values  map[string]string
	useJSON bool
}

func parseOptions(args []string) options {
	opts := options{values: make(map[string]string)}
	for _, arg := range args {
		key, value := parseFlag(arg)
		if key == "" {
			continue
		}
		if key == "json" {
			opts.useJSON = true
			continue
		}
		opts.values[key] = value
	}
	return opts
}

func (o options) flag(key string) bool {
	v, ok := o.values[key]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func parseFlag(arg string) (string, string) {
	if len(arg) > 2 && arg[:2] == "--" {
		arg = arg[2:]
		for i, c := range arg {
			if c == '=' {
				return arg[:i], arg[i+1:]
			}
		}
		return arg, "true"
	}
	return "", ""
}

func run(ctx context.Context, rt *config.Runtime, command string, args []string, out io.Writer) error {
	adminSvc := admin.New(rt.Repository, rt.BlobStore, nil)
	opts := parseOptions(args)

	switch command {
	case "list":
		return handleList(ctx, adminSvc, opts, out)
	case "stats":
		return handleStats(ctx, adminSvc, opts, out)
	case "accounts":
		return handleAccounts(ctx, adminSvc, opts, out)
	case "purge-orphans":
		return handlePurge(ctx, adminSvc, opts, out)
	case "delete-account":
		return handleDeleteAccount(ctx, adminSvc, opts, out)
	case "register":
		return handleRegister(ctx, rt.Service, opts, out)
	case "migrate":
		fmt.Fprintln(out, "Migrations applied")
		return nil
	default:
		return errUnknownCommand
	}
}

func parseListRequest(opts options) (admin.ListObjectsRequest, error) {
	var listOpts []admin.ListObjectsOption

	if v, ok := opts.values["owner-id"]; ok {
		id, err := uuid.Parse(v)
		if err != nil {
			return admin.ListObjectsRequest{}, fmt.Errorf("invalid --owner-id: %w", err)
		}
		listOpts = append(listOpts, admin.WithOwnerID(id))
	}
	if v, ok := opts.values["content-type"]; ok {
		listOpts = append(listOpts, admin.WithContentType(v))
	}

	limit, offset := admin.DefaultListLimit, 0
	if v, ok := opts.values["limit"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return admin.ListObjectsRequest{}, fmt.Errorf("invalid --limit: %w", err)
		}
		limit = n
	}
	if v, ok := opts.values["offset"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return admin.ListObjectsRequest{}, fmt.Errorf("invalid --offset: %w", err)
		}
		offset = n
	}
	listOpts = append(listOpts, admin.WithPagination(limit, offset))

	return admin.NewListObjectsRequest(listOpts...), nil
}

func handleList(ctx context.Context, adminSvc admin.AdminService, opts options, out io.Writer) error {
	req, err := parseListRequest(opts)
	if err != nil {
		return err
	}

	resp, err := adminSvc.ListObjects(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to list objects: %w", err)
	}

	if opts.useJSON {
		return writeJSON(out, resp)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tOWNER\tTYPE\tSIZE\tCREATED\n")
	for _, o := range resp.Objects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			o.ID,
			truncate(o.OriginalName, 24),
			o.OwnerID.String()[:8]+"...",
			truncate(o.ContentType, 20),
			o.SizeBytes,
			o.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d", len(resp.Objects))
	if resp.HasMore {
		fmt.Fprintf(out, " (has more, use --offset=%d to continue)", resp.Offset+resp.Limit)
	}
	fmt.Fprintln(out)
	return nil
}

func handleStats(ctx context.Context, adminSvc admin.AdminService, opts options, out io.Writer) error {
	resp, err := adminSvc.GetStatistics(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	if opts.useJSON {
		return writeJSON(out, resp)
	}

	stats := resp.Statistics
	fmt.Fprintln(out, "=== Sealed Content Statistics ===")
	fmt.Fprintf(out, "\nObjects:  %d (%d bytes)\n", stats.ObjectCount, stats.TotalBytes)
	fmt.Fprintf(out, "Orphans:  %d (%d bytes)\n", stats.OrphanCount, stats.OrphanBytes)
	fmt.Fprintf(out, "Accounts: %d\n", stats.AccountCount)

	if len(stats.ByContentType) > 0 {
		fmt.Fprintln(out, "\nBy Content Type:")
		types := make([]string, 0, len(stats.ByContentType))
		for t := range stats.ByContentType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(out, "  %-30s: %d\n", truncate(t, 30), stats.ByContentType[t])
		}
	}

	if stats.OldestObject != nil && stats.NewestObject != nil {
		fmt.Fprintln(out, "\nTime Range:")
		fmt.Fprintf(out, "  Oldest: %s\n", stats.OldestObject.Format(time.RFC3339))
		fmt.Fprintf(out, "  Newest: %s\n", stats.NewestObject.Format(time.RFC3339))
	}

	fmt.Fprintf(out, "\nComputed at: %s\n", resp.ComputedAt.Format(time.RFC3339))
	return nil
}

func handleAccounts(ctx context.Context, adminSvc admin.AdminService, opts options, out io.Writer) error {
	accounts, err := adminSvc.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	if opts.useJSON {
		return writeJSON(out, accounts)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tUSERNAME\tPRIVILEGE\tFILES\tCREATED\n")
	for _, a := range accounts {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			a.ID, a.Username, a.Privilege, a.FileCount, a.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
	return nil
}

func handlePurge(ctx context.Context, adminSvc admin.AdminService, opts options, out io.Writer) error {
	resp, err := adminSvc.PurgeOrphans(ctx, admin.PurgeRequest{DryRun: opts.flag("dry-run")})
	if err != nil {
		return fmt.Errorf("failed to purge orphans: %w", err)
	}

	if opts.useJSON {
		return writeJSON(out, resp)
	}

	for _, o := range resp.Orphans {
		fmt.Fprintf(out, "%s\t%s\t%d bytes\n", o.ID, o.OriginalName, o.SizeBytes)
	}
	if resp.DryRun {
		fmt.Fprintf(out, "Found %d orphaned objects (dry run, nothing deleted)\n", len(resp.Orphans))
		return nil
	}
	fmt.Fprintf(out, "Purged %d orphaned objects, freed %d bytes\n", resp.Purged, resp.FreedBytes)
	return nil
}

func handleDeleteAccount(ctx context.Context, adminSvc admin.AdminService, opts options, out io.Writer) error {
	resp, err := adminSvc.DeleteAccount(ctx, admin.DeleteAccountRequest{
		Username: opts.values["username"],
		Cascade:  opts.flag("cascade"),
	})
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if opts.useJSON {
		return writeJSON(out, resp)
	}

	fmt.Fprintf(out, "Deleted account %s (%d objects deleted, %d orphaned)\n",
		resp.AccountID, resp.DeletedObjects, resp.OrphanedObjects)
	return nil
}

func handleRegister(ctx context.Context, svc sealedcontent.Service, opts options, out io.Writer) error {
	privilege := sealedcontent.PrivilegeUser
	if opts.flag("admin") {
		privilege = sealedcontent.PrivilegeAdmin
	}

	account, err := svc.Register(ctx, sealedcontent.RegisterRequest{
		Username:  opts.values["username"],
		Password:  opts.values["password"],
		Privilege: privilege,
	})
	if err != nil {
		return fmt.Errorf("failed to register account: %w", err)
	}

	if opts.useJSON {
		return writeJSON(out, map[string]interface{}{
			"id":        account.ID,
			"username":  account.Username,
			"token":     account.Token,
			"privilege": account.Privilege,
		})
	}

	fmt.Fprintf(out, "Registered %s (%s)\nToken: %s\n", account.Username, account.ID, account.Token)
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
