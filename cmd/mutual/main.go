package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mutual/internal/app"
	"mutual/internal/config"
	"mutual/internal/db"
	"mutual/internal/domain"
	"mutual/internal/engine/auth"
	"mutual/internal/migrate"
	"mutual/internal/repo"
	"mutual/internal/server"
	"mutual/internal/session"
	"mutual/internal/signing"
	"mutual/internal/validator"
)

var rootCmd = &cobra.Command{
	Use:   "mutual",
	Short: "Mutual case study CLI",
	Long: `Mutual collects case studies and proposes each one as a pull request on the
content repository.
- Drafts: unpublished case studies kept in the workspace (.mutual/mutual.db), one per title and author.
- Submit: validate, optionally sign with a wallet key, then open the pull request. Submitting the
  same document twice returns the pull request opened the first time.
- Pulls: the case studies still open for review.
- Serve: run the HTTP API the web form talks to.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("MUTUAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/mutual.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("login", "", "GitHub login drafts and submissions belong to")
	rootCmd.PersistentFlags().String("email", "", "email used when no login is set")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("login", rootCmd.PersistentFlags().Lookup("login"))
	_ = viper.BindPFlag("email", rootCmd.PersistentFlags().Lookup("email"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(dbCmd())
	rootCmd.AddCommand(draftCmd())
	rootCmd.AddCommand(pullsCmd())
	rootCmd.AddCommand(publishedCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config (mutual.yml) names the content repository pull requests are opened against, the registry cache, logging and webhooks. Secrets come from MUTUAL_GITHUB_TOKEN and MUTUAL_JWT_SECRET.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default mutual.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := app.LoadConfig(viper.GetString("workspace"), viper.GetString("config"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "db", Short: "Workspace database"}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			current, err := migrate.Current(cmd.Context(), conn)
			if err != nil {
				return err
			}
			latest, err := migrate.Latest()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"path": db.Path(viper.GetString("workspace")), "current": current, "latest": latest})
			}
			fmt.Printf("Database: %s\nSchema: %d (latest %d)\n", db.Path(viper.GetString("workspace")), current, latest)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, err := migrate.Migrate(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("schema up to date")
			}
			for _, name := range applied {
				fmt.Println("applied", name)
			}
			return nil
		},
	})
	return cmd
}

func draftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Manage drafts",
		Long:  "Drafts are saved per author and title: saving a document whose title you already have a draft for replaces that draft.",
	}
	cmd.AddCommand(draftSaveCmd())
	cmd.AddCommand(draftListCmd())
	cmd.AddCommand(draftShowCmd())
	cmd.AddCommand(draftDeleteCmd())
	return cmd
}

func draftSaveCmd() *cobra.Command {
	var file, markdownFile string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a draft from a YAML or JSON document",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readDocument(file)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s := session.New(a.Engine, a.Engine)
				if err := s.SetDocument(raw); err != nil {
					return err
				}
				if markdownFile != "" {
					body, err := fileEditor(markdownFile)
					if err != nil {
						return err
					}
					if err := s.FollowEditor(body); err != nil {
						return err
					}
				}
				d, err := s.SaveDraft(ctx, identity(nil))
				if err != nil {
					printFieldErrors(err)
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				fmt.Printf("Saved draft %s (%s)\n", d.ID, d.CaseStudy.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "document file (.yml, .yaml or .json)")
	cmd.Flags().StringVar(&markdownFile, "markdown-file", "", "read the markdown body from this file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func draftListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your drafts, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				drafts, err := a.Engine.ListDrafts(ctx, identity(nil))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(drafts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Organization", "Type", "Updated"})
				for _, d := range drafts {
					tw.AppendRow(table.Row{d.ID, d.CaseStudy.Title, d.CaseStudy.OrganizationName, d.CaseStudy.Type, d.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func draftShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, err := a.Engine.GetDraft(ctx, args[0], identity(nil))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				out, err := yaml.Marshal(d.CaseStudy.Raw())
				if err != nil {
					return err
				}
				fmt.Print(string(out))
				return nil
			})
		},
	}
}

func draftDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeleteDraft(ctx, args[0], identity(nil)); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func pullsCmd() *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "pulls",
		Short: "List case studies in progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var (
					open []domain.ChangeRequest
					err  error
				)
				if author != "" {
					open, err = a.Engine.ListOpenByAuthor(ctx, author)
				} else {
					open, err = a.Engine.ListOpen(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(open)
				}
				if len(open) == 0 {
					fmt.Println("no case studies in progress")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Title", "Author", "URL"})
				for _, cr := range open {
					tw.AppendRow(table.Row{cr.Number, cr.Title, cr.AuthorLogin, cr.HTMLURL})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "only pull requests opened by this login")
	return cmd
}

func publishedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "published",
		Short: "List pull requests opened from this workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := auth.RequireOwner(identity(nil))
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rows, err := a.Engine.Repo.ListPublicationsByOwner(ctx, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				if len(rows) == 0 {
					fmt.Println("nothing published yet")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"#", "Title", "Branch", "Published"})
				for _, p := range rows {
					tw.AppendRow(table.Row{p.Number, p.Title, p.Branch, p.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func submitCmd() *cobra.Command {
	var file, markdownFile, draftID string
	var confirm bool
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Validate, optionally sign, and open a pull request",
		Long: `Submit publishes a case study from --file or a saved draft (--draft).
With a wallet key (--wallet-key or MUTUAL_WALLET_KEY) the document is signed first;
--confirm asks before signing, and declining leaves the document unpublished.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (draftID == "") {
				return errors.New("exactly one of --file or --draft is required")
			}
			signer, err := walletSigner(cmd, confirm)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				id := identity(signer)
				s := session.New(a.Engine, a.Engine)
				if draftID != "" {
					d, err := a.Engine.GetDraft(ctx, draftID, id)
					if err != nil {
						return err
					}
					if err := s.Load(d); err != nil {
						return err
					}
				} else {
					raw, err := readDocument(file)
					if err != nil {
						return err
					}
					if err := s.SetDocument(raw); err != nil {
						return err
					}
				}
				if markdownFile != "" {
					body, err := fileEditor(markdownFile)
					if err != nil {
						return err
					}
					if err := s.FollowEditor(body); err != nil {
						return err
					}
				}
				pub, err := s.Submit(ctx, id, signer)
				if err != nil {
					printFieldErrors(err)
					return err
				}
				if viper.GetBool("json") {
					return printJSON(pub)
				}
				fmt.Printf("Pull request #%d: %s\n", pub.ChangeRequest.Number, pub.ChangeRequest.HTMLURL)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "document file (.yml, .yaml or .json)")
	cmd.Flags().StringVar(&draftID, "draft", "", "submit a saved draft")
	cmd.Flags().StringVar(&markdownFile, "markdown-file", "", "read the markdown body from this file")
	cmd.Flags().String("wallet-key", "", "hex secp256k1 private key to sign with (default $MUTUAL_WALLET_KEY)")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "ask before signing")
	return cmd
}

func signCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a document and print it with its signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := walletSigner(cmd, false)
			if err != nil {
				return err
			}
			if signer == nil {
				return errors.New("--wallet-key or MUTUAL_WALLET_KEY is required")
			}
			raw, err := readDocument(file)
			if err != nil {
				return err
			}
			raw.Signature = nil
			doc, err := validator.Validate(raw)
			if err != nil {
				printFieldErrors(err)
				return err
			}
			sig, err := signing.Sign(cmd.Context(), doc, signer)
			if err != nil {
				return err
			}
			doc.Signature = &sig
			if viper.GetBool("json") {
				return printJSON(doc.Raw())
			}
			out, err := yaml.Marshal(doc.Raw())
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "document file (.yml, .yaml or .json)")
	cmd.Flags().String("wallet-key", "", "hex secp256k1 private key to sign with (default $MUTUAL_WALLET_KEY)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func verifyCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the signature of a signed document",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readDocument(file)
			if err != nil {
				return err
			}
			if raw.Signature == nil {
				return errors.New("document has no signature")
			}
			doc, err := validator.Validate(raw)
			if err != nil {
				printFieldErrors(err)
				return err
			}
			verr := signing.Verify(doc, *doc.Signature)
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": verr == nil, "signer": doc.Signature.SignerAddress, "error": fmt.Sprint(verr)})
			}
			if verr != nil {
				return verr
			}
			fmt.Printf("signature OK: signed by %s\n", doc.Signature.SignerAddress)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "document file (.yml, .yaml or .json)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func tokenCmd() *cobra.Command {
	var in server.DevLoginRequest
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return errors.New("MUTUAL_JWT_SECRET is required")
			}
			in.Login = viper.GetString("login")
			in.Email = viper.GetString("email")
			token, err := server.SignSessionToken(secret, in, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Picture, "picture", "", "avatar URL")
	cmd.Flags().StringVar(&in.Wallet, "wallet", "", "wallet address")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{Use: "log", Short: "Event log"}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Engine.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Entity", "Actor", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&f.ActorID, "actor", "", "actor (owner key) filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return errors.New("MUTUAL_JWT_SECRET is required for session auth")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(ctx context.Context, a *app.App) error {
				handler, err := server.New(server.Config{
					Engine:   a.Engine,
					BasePath: basePath,
					Logger:   a.Engine.Logger,
					Auth: server.AuthConfig{
						JWTSecret:  secret,
						CookieName: a.Config.CookieName(),
						DevLogin:   a.Config.Auth.DevLogin,
					},
				})
				if err != nil {
					return err
				}
				server.StartWebhooks(ctx, a.Engine)
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				a.Engine.Logger.Info("serving",
					"addr", addr,
					"base_path", basePath,
					"repository", a.Config.Repository.Owner+"/"+a.Config.Repository.Name,
				)
				fmt.Printf("Serving Mutual API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, app.Options{
		Workspace:   viper.GetString("workspace"),
		ConfigPath:  viper.GetString("config"),
		GitHubToken: viper.GetString("github-token"),
	})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// identity builds the local author identity from --login/--email, with the
// signer's address as wallet when there is one.
func identity(signer signing.WalletSigner) domain.Identity {
	login := strings.TrimSpace(viper.GetString("login"))
	email := strings.TrimSpace(viper.GetString("email"))
	var id domain.Identity
	if login != "" || email != "" {
		id.OAuth = &domain.OAuthIdentity{Login: login, Email: email}
	}
	if signer != nil {
		id.Wallet = &domain.WalletIdentity{Address: signer.Address()}
	}
	return id
}

func walletSigner(cmd *cobra.Command, confirm bool) (signing.WalletSigner, error) {
	key, _ := cmd.Flags().GetString("wallet-key")
	if key = strings.TrimSpace(key); key == "" {
		key = strings.TrimSpace(viper.GetString("wallet-key"))
	}
	if key == "" {
		return nil, nil
	}
	ks, err := signing.NewKeySigner(key)
	if err != nil {
		return nil, err
	}
	if confirm {
		return &signing.PromptSigner{Next: ks, In: os.Stdin, Out: os.Stdout}, nil
	}
	return ks, nil
}

// readDocument parses a case study from YAML, or JSON for .json files.
func readDocument(path string) (domain.RawCaseStudy, error) {
	var raw domain.RawCaseStudy
	data, err := os.ReadFile(path)
	if err != nil {
		return raw, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return raw, fmt.Errorf("parse %s: %w", path, err)
		}
		return raw, nil
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return raw, fmt.Errorf("parse %s: %w", path, err)
	}
	return raw, nil
}

// fileEditor reads the markdown body from path. A missing or unreadable file
// is an error rather than an empty body.
func fileEditor(path string) (iter.Seq[string], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markdown file: %w", err)
	}
	return func(yield func(string) bool) {
		yield(string(data))
	}, nil
}

func printFieldErrors(err error) {
	verrs, ok := validator.AsErrors(err)
	if !ok || viper.GetBool("json") {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stderr)
	tw.AppendHeader(table.Row{"Field", "Code", "Message"})
	for _, fe := range verrs {
		tw.AppendRow(table.Row{fe.Field, fe.Code, fe.Message})
	}
	tw.Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
