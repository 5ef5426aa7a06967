package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"roadwise/internal/app"
	"roadwise/internal/config"
	"roadwise/internal/db"
	"roadwise/internal/domain"
	"roadwise/internal/engine"
	"roadwise/internal/repo"
	"roadwise/internal/seed"
	"roadwise/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "rw",
	Short: "Roadwise CLI",
	Long: `Roadwise is a road maintenance dashboard for pothole tracking.
- Signalements are reported road defects (automated detection or human report)
  with a location, severity, and status: new -> inProgress -> repaired.
- Maintenances are scheduled repair tasks assigned to a team; each one covers
  one or more signalements. Completing a maintenance marks its signalements
  repaired; putting it in progress puts them in progress too.
- Teams are the repair crews.
- The workspace is a .roadwise directory holding the SQLite database; an empty
  store is seeded with a demo dataset on first use ('rw seed' regenerates it).
- 'rw serve' exposes the same operations over HTTP with JWT operator auth.`,
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
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ROADWISE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(signalementCmd())
	rootCmd.AddCommand(maintenanceCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func signalementCmd() *cobra.Command {
	sig := &cobra.Command{
		Use:   "signalement",
		Short: "Manage signalements",
		Long:  "Signalements are reported road defects. They start as new, move to inProgress when a repair covering them starts, and end repaired.",
	}
	sig.AddCommand(signalementListCmd())
	sig.AddCommand(signalementShowCmd())
	sig.AddCommand(signalementCreateCmd())
	sig.AddCommand(signalementStatusCmd())
	sig.AddCommand(signalementExportCmd())
	return sig
}

func signalementListCmd() *cobra.Command {
	var f repo.SignalementFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List signalements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.FilterSignalements(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Address", "Severity", "Status", "Reported", "Maintenance"})
				for _, s := range items {
					maintenance := ""
					if s.MaintenanceID != nil {
						maintenance = *s.MaintenanceID
					}
					tw.AppendRow(table.Row{s.ID, s.Address, s.Severity, s.Status, s.ReportDate, maintenance})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (new, inProgress, repaired)")
	cmd.Flags().StringVar(&f.Severity, "severity", "", "severity filter (low, medium, high)")
	cmd.Flags().StringVar(&f.DateFrom, "from", "", "report date lower bound (RFC 3339)")
	cmd.Flags().StringVar(&f.DateTo, "to", "", "report date upper bound (RFC 3339)")
	return cmd
}

func signalementShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a signalement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.GetSignalement(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func signalementCreateCmd() *cobra.Command {
	var opts engine.SignalementCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Report a road defect",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateSignalement(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&opts.Lng, "lng", 0, "longitude")
	cmd.Flags().StringVar(&opts.Address, "address", "", "street address")
	cmd.Flags().StringVar(&opts.Severity, "severity", "medium", "severity (low, medium, high)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.DetectedBy, "detected-by", "", "detection source (automated-detection, human-report)")
	cmd.Flags().StringVar(&opts.ImageURL, "image-url", "", "photo URL")
	cmd.Flags().StringVar(&opts.ThumbnailURL, "thumbnail-url", "", "thumbnail URL")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func signalementStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Update signalement status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.SetSignalementStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (new, inProgress, repaired)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func signalementExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export signalements as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				data, err := e.ExportSignalementsCSV(ctx)
				if err != nil {
					return err
				}
				return writeExport(out, data)
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

func maintenanceCmd() *cobra.Command {
	mnt := &cobra.Command{
		Use:   "maintenance",
		Short: "Manage maintenance tasks",
		Long:  "Maintenances are scheduled repairs covering one or more signalements. Status flows scheduled -> inProgress -> completed and propagates to the covered signalements.",
	}
	mnt.AddCommand(maintenanceCreateCmd())
	mnt.AddCommand(maintenanceListCmd())
	mnt.AddCommand(maintenanceShowCmd())
	mnt.AddCommand(maintenanceStatusCmd())
	mnt.AddCommand(maintenanceExportCmd())
	return mnt
}

func maintenanceCreateCmd() *cobra.Command {
	var opts engine.MaintenanceCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a maintenance task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CreateMaintenance(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.ScheduledDate, "scheduled", "", "scheduled date (RFC 3339, defaults to now)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "initial status (defaults to scheduled)")
	cmd.Flags().StringVar(&opts.TeamID, "team", "", "team id")
	cmd.Flags().StringArrayVar(&opts.SignalementIDs, "signalement", []string{}, "covered signalement id (repeatable)")
	cmd.Flags().StringVar(&opts.RepairType, "repair-type", "", "repair type")
	cmd.Flags().Float64Var(&opts.EstimatedDuration, "duration", 0, "estimated duration in hours")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("signalement")
	return cmd
}

func maintenanceListCmd() *cobra.Command {
	var f repo.MaintenanceFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List maintenance tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListMaintenances(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Team", "Scheduled", "Signalements"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.Title, m.Status, m.TeamID, m.ScheduledDate, strings.Join(m.SignalementIDs, ";")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (scheduled, inProgress, completed)")
	cmd.Flags().StringVar(&f.TeamID, "team", "", "team filter")
	return cmd
}

func maintenanceShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a maintenance task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.GetMaintenance(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	return cmd
}

func maintenanceStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Update maintenance status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.SetMaintenanceStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (scheduled, inProgress, completed)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func maintenanceExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export maintenance tasks as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				data, err := e.ExportMaintenancesCSV(ctx)
				if err != nil {
					return err
				}
				return writeExport(out, data)
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

func teamCmd() *cobra.Command {
	team := &cobra.Command{Use: "team", Short: "Repair teams"}
	team.AddCommand(teamListCmd())
	team.AddCommand(teamShowCmd())
	return team
}

func teamListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List repair teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTeams(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Members", "Specialization"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Members, t.Specialization})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func teamShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a repair team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTeam(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.Stats(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				fmt.Printf("Signalements: %d total, %d in the last 30 days\n", st.TotalSignalements, st.SignalementsLast30Days)
				for _, status := range []string{"new", "inProgress", "repaired"} {
					fmt.Printf("  %s: %d\n", status, st.SignalementsByStatus[status])
				}
				fmt.Printf("Maintenances: %d total, %d completed in the last 30 days\n", st.TotalMaintenances, st.CompletedLast30Days)
				for _, status := range []string{"scheduled", "inProgress", "completed"} {
					fmt.Printf("  %s: %d\n", status, st.MaintenancesByStatus[status])
				}
				if len(st.UpcomingMaintenances) > 0 {
					fmt.Println("Upcoming:")
					for _, m := range st.UpcomingMaintenances {
						fmt.Printf("  %s %s (%s)\n", m.ScheduledDate, m.Title, m.Status)
					}
				}
				return nil
			})
		},
	}
	return cmd
}

func seedCmd() *cobra.Command {
	var signalements, maintenances int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Regenerate the demo dataset",
		Long:  "Replaces the entire store with freshly generated teams, signalements, and maintenances. Counts default to the config values.",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, cfg, err := app.Bootstrap(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			opts := seed.Options{
				Signalements: cfg.Seed.Signalements,
				Maintenances: cfg.Seed.Maintenances,
			}
			if cmd.Flags().Changed("signalements") {
				opts.Signalements = signalements
			}
			if cmd.Flags().Changed("maintenances") {
				opts.Maintenances = maintenances
			}
			if err := seed.Apply(cmd.Context(), conn, opts); err != nil {
				return err
			}
			fmt.Printf("Seeded %d signalements and %d maintenances into %s\n", opts.Signalements, opts.Maintenances, db.Path(workspace))
			return nil
		},
	}
	cmd.Flags().IntVar(&signalements, "signalements", 0, "number of signalements")
	cmd.Flags().IntVar(&maintenances, "maintenances", 0, "number of maintenances")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in roadwise.yml next to the .roadwise directory: server address, JWT secret, operator accounts, and seed counts.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
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
	return cmd
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default roadwise.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "API keys let automated detection systems call the API with an X-Api-Key header instead of a JWT. The key is shown once at creation; only its hash is stored.",
	}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				raw := make([]byte, 24)
				if _, err := rand.Read(raw); err != nil {
					return err
				}
				secret := "rwk_" + hex.EncodeToString(raw)
				key := domain.APIKey{
					ID:      "key-" + uuid.New().String(),
					ActorID: viper.GetString("actor-id"),
					Name:    name,
					KeyHash: repo.HashAPIKey(secret),
				}
				if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "name": key.Name, "key": secret})
				}
				fmt.Printf("Created key %s for %s\n", key.ID, key.ActorID)
				fmt.Printf("Secret (save it, it will not be shown again): %s\n", secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The audit trail: signalement reports, maintenance scheduling, and status changes, newest first.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, cfg, err := app.Bootstrap(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			if !cmd.Flags().Changed("addr") && cfg.Server.Addr != "" {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && cfg.Server.BasePath != "" {
				basePath = cfg.Server.BasePath
			}
			secret := os.Getenv("ROADWISE_JWT_SECRET")
			if secret == "" {
				secret = cfg.Server.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("jwt secret required; set server.jwt_secret in %s or ROADWISE_JWT_SECRET", config.Path(workspace))
			}
			e := engine.New(conn, cfg)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth: server.AuthConfig{
					JWTSecret:              secret,
					AllowLegacyActorHeader: cfg.Server.AllowLegacyActorHeader,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Roadwise API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	conn, cfg, err := app.Bootstrap(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer conn.Close()
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeExport(out, data string) error {
	if out == "" {
		fmt.Print(data)
		return nil
	}
	return os.WriteFile(out, []byte(data), 0o644)
}
