package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/akshaydotweb/drone-ops-ai/internal/app"
	"github.com/akshaydotweb/drone-ops-ai/internal/config"
	"github.com/akshaydotweb/drone-ops-ai/internal/domain"
	"github.com/akshaydotweb/drone-ops-ai/internal/ingest"
	"github.com/akshaydotweb/drone-ops-ai/internal/llm"
	"github.com/akshaydotweb/drone-ops-ai/internal/query"
	"github.com/akshaydotweb/drone-ops-ai/internal/repo"
	"github.com/akshaydotweb/drone-ops-ai/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "droneops",
	Short: "Drone Ops assignment desk",
	Long: `Drone Ops coordinates pilots, drones, and survey missions for a single desk.
- Workspace: a .droneops directory holding the SQLite database; droneops.yml
  configures the desk id, the location catalog, and CSV import paths.
- Roster: pilots, drones, and missions imported from CSV files.
- Assignments: the desk checks availability, skills, and certifications
  before linking a pilot or drone to a mission.
- Conflicts: audit the roster for double bookings, coverage gaps,
  maintenance clashes, and location splits.
- Chat: ask questions in plain language ('droneops chat'); add an OpenAI
  key for free-form answers on top of the built-in commands.`,
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
	viper.SetEnvPrefix("DRONEOPS")
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
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(pilotCmd())
	rootCmd.AddCommand(droneCmd())
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(recommendCmd())
	rootCmd.AddCommand(assignCmd())
	rootCmd.AddCommand(conflictsCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var deskID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default droneops.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if err := os.MkdirAll(workspace, 0o755); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(deskID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&deskID, "desk-id", "droneops", "desk identifier")
	return cmd
}

func importCmd() *cobra.Command {
	var pilots, drones, missions string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import pilots, drones, and missions from CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				if pilots == "" {
					pilots = desk.Config.Data.Pilots
				}
				if drones == "" {
					drones = desk.Config.Data.Drones
				}
				if missions == "" {
					missions = desk.Config.Data.Missions
				}
				loader := ingest.Loader{KnownLocation: desk.Config.KnownLocation}
				roster, err := loader.Files(pilots, drones, missions)
				if err != nil {
					return err
				}
				if err := desk.Engine.ImportRoster(ctx, roster, viper.GetString("actor-id")); err != nil {
					return err
				}
				out := map[string]int{
					"pilots":   len(roster.Pilots),
					"drones":   len(roster.Drones),
					"missions": len(roster.Missions),
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Imported %d pilots, %d drones, %d missions\n",
					out["pilots"], out["drones"], out["missions"])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pilots, "pilots", "", "pilots CSV path (defaults from config)")
	cmd.Flags().StringVar(&drones, "drones", "", "drones CSV path (defaults from config)")
	cmd.Flags().StringVar(&missions, "missions", "", "missions CSV path (defaults from config)")
	return cmd
}

func pilotCmd() *cobra.Command {
	pilot := &cobra.Command{Use: "pilot", Short: "Inspect pilots"}
	pilot.AddCommand(pilotListCmd())
	pilot.AddCommand(pilotShowCmd())
	pilot.AddCommand(pilotAvailabilityCmd())
	return pilot
}

func pilotListCmd() *cobra.Command {
	var location, skill string
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pilots (available ones by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				var pilots []domain.Pilot
				var err error
				if all {
					pilots, err = desk.Engine.Repo.ListPilots(ctx)
				} else {
					pilots, err = desk.Engine.Repo.FindAvailablePilots(ctx, location, skill)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(pilots)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Location", "Status", "Skills", "Certifications"})
				for _, p := range pilots {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Location, p.Status,
						strings.Join(p.Skills, ", "), strings.Join(p.Certifications, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "location filter")
	cmd.Flags().StringVar(&skill, "skill", "", "skill filter")
	cmd.Flags().BoolVar(&all, "all", false, "include unavailable pilots")
	return cmd
}

func pilotShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a pilot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				p, err := desk.Engine.Repo.GetPilot(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(p)
			})
		},
	}
	return cmd
}

func pilotAvailabilityCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "availability <id>",
		Short: "Check whether a pilot is free for a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				ok, p, err := desk.Engine.PilotAvailability(ctx, args[0], start, end)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"pilot_id": p.ID, "available": ok, "status": p.Status,
						"start": start, "end": end,
					})
				}
				if ok {
					fmt.Printf("%s (%s) is available from %s to %s\n", p.ID, p.Name, start, end)
				} else {
					fmt.Printf("%s (%s) is NOT available from %s to %s (status: %s)\n", p.ID, p.Name, start, end, p.Status)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "window end (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func droneCmd() *cobra.Command {
	drone := &cobra.Command{Use: "drone", Short: "Inspect drones"}
	drone.AddCommand(droneListCmd())
	drone.AddCommand(droneShowCmd())
	return drone
}

func droneListCmd() *cobra.Command {
	var location, capability string
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drones (available ones by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				var drones []domain.Drone
				var err error
				if all {
					drones, err = desk.Engine.Repo.ListDrones(ctx)
				} else {
					drones, err = desk.Engine.Repo.FindAvailableDrones(ctx, location, capability)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(drones)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Model", "Location", "Status", "Capabilities"})
				for _, d := range drones {
					tw.AppendRow(table.Row{d.ID, d.Model, d.Location, d.Status, strings.Join(d.Capabilities, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "location filter")
	cmd.Flags().StringVar(&capability, "capability", "", "capability filter")
	cmd.Flags().BoolVar(&all, "all", false, "include unavailable drones")
	return cmd
}

func droneShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a drone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				d, err := desk.Engine.Repo.GetDrone(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(d)
			})
		},
	}
	return cmd
}

func missionCmd() *cobra.Command {
	mission := &cobra.Command{Use: "mission", Short: "Inspect missions"}
	mission.AddCommand(missionListCmd())
	mission.AddCommand(missionShowCmd())
	return mission
}

func missionListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List missions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				missions, err := desk.Engine.Repo.ListMissions(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(missions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Client", "Location", "Window", "Priority", "Pilot", "Drone"})
				for _, m := range missions {
					tw.AppendRow(table.Row{m.ID, m.Client, m.Location,
						m.StartDate.Format("2006-01-02") + " to " + m.EndDate.Format("2006-01-02"),
						m.Priority, orDash(m.AssignedPilot), orDash(m.AssignedDrone)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func missionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				m, err := desk.Engine.Repo.GetMission(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(m)
			})
		},
	}
	return cmd
}

func recommendCmd() *cobra.Command {
	rec := &cobra.Command{Use: "recommend", Short: "Recommend candidates for a mission"}
	rec.AddCommand(recommendPilotCmd())
	rec.AddCommand(recommendDroneCmd())
	rec.AddCommand(recommendAlternativesCmd())
	return rec
}

func recommendPilotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pilot <mission-id>",
		Short: "Best pilot for a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				p, err := desk.Engine.BestPilotFor(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(p)
			})
		},
	}
	return cmd
}

func recommendDroneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drone <mission-id>",
		Short: "Best drone for a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				d, err := desk.Engine.BestDroneFor(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(d)
			})
		},
	}
	return cmd
}

func recommendAlternativesCmd() *cobra.Command {
	var exclude string
	cmd := &cobra.Command{
		Use:   "alternatives <mission-id>",
		Short: "Other qualified pilots, ignoring location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				candidates, err := desk.Engine.AlternativePilotsFor(ctx, exclude, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(candidates)
				}
				if len(candidates) == 0 {
					fmt.Println("No alternative pilots qualify.")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Location", "Location Match"})
				for _, c := range candidates {
					tw.AppendRow(table.Row{c.Pilot.ID, c.Pilot.Name, c.Pilot.Location, c.LocationMatch})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&exclude, "exclude", "", "pilot id to exclude")
	return cmd
}

func assignCmd() *cobra.Command {
	assign := &cobra.Command{Use: "assign", Short: "Assign pilots and drones to missions"}
	assign.AddCommand(assignPilotCmd())
	assign.AddCommand(assignDroneCmd())
	return assign
}

func assignPilotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pilot <pilot-id> <mission-id>",
		Short: "Assign a pilot to a mission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				m, err := desk.Engine.AssignPilot(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(m)
			})
		},
	}
	return cmd
}

func assignDroneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drone <drone-id> <mission-id>",
		Short: "Assign a drone to a mission",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				m, err := desk.Engine.AssignDrone(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(m)
			})
		},
	}
	return cmd
}

func conflictsCmd() *cobra.Command {
	var missionID string
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Audit the roster for conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				var conflicts []domain.Conflict
				var err error
				if missionID != "" {
					conflicts, err = desk.Detector.ForMission(ctx, missionID)
				} else {
					conflicts, err = desk.Detector.DetectAll(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					if conflicts == nil {
						conflicts = []domain.Conflict{}
					}
					return printJSON(conflicts)
				}
				if len(conflicts) == 0 {
					color.Green("No conflicts detected.")
					return nil
				}
				fmt.Printf("%d conflict(s) detected:\n", len(conflicts))
				for _, c := range conflicts {
					fmt.Printf("- [%s] %s: %s\n", severityColor(c.Severity), c.Type, c.Description)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&missionID, "mission", "", "limit to one mission")
	return cmd
}

func severityColor(severity string) string {
	switch severity {
	case domain.SeverityCritical:
		return color.RedString(strings.ToUpper(severity))
	case domain.SeverityMajor:
		return color.YellowString(strings.ToUpper(severity))
	default:
		return color.CyanString(strings.ToUpper(severity))
	}
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the desk summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				s, err := desk.Engine.Summary(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Desk: %s\n", s.DeskID)
				fmt.Printf("Missions: %d total, %d assigned, %d unassigned\n",
					s.MissionsTotal, s.MissionsAssigned, s.MissionsUnassigned)
				fmt.Println("Pilots:")
				for status, n := range s.PilotsByStatus {
					fmt.Printf("  %s: %d\n", status, n)
				}
				fmt.Println("Drones:")
				for status, n := range s.DronesByStatus {
					fmt.Printf("  %s: %d\n", status, n)
				}
				return nil
			})
		},
	}
	return cmd
}

func chatCmd() *cobra.Command {
	var openaiKey string
	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask the desk a question, or start a REPL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				dispatcher := desk.Dispatcher(buildLLM(openaiKey, desk.Config.LLM.Model))
				if len(args) > 0 {
					reply, err := dispatcher.Answer(ctx, strings.Join(args, " "))
					if err != nil {
						return err
					}
					fmt.Println(reply)
					return nil
				}
				fmt.Println("Drone Ops chat. Type 'help' for commands, 'exit' to quit.")
				scanner := bufio.NewScanner(os.Stdin)
				for {
					fmt.Print("> ")
					if !scanner.Scan() {
						return scanner.Err()
					}
					line := strings.TrimSpace(scanner.Text())
					if line == "" {
						continue
					}
					if line == "exit" || line == "quit" {
						return nil
					}
					reply, err := dispatcher.Answer(ctx, line)
					if err != nil {
						color.Red("error: %v", err)
						continue
					}
					fmt.Println(reply)
				}
			})
		},
	}
	cmd.Flags().StringVar(&openaiKey, "openai", "", "OpenAI API key (or set OPENAI_API_KEY)")
	return cmd
}

// buildLLM returns nil when no key is configured, leaving the dispatcher
// on rule-based answers only.
func buildLLM(flagKey, model string) query.Answerer {
	key := strings.TrimSpace(flagKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if key == "" {
		return nil
	}
	client, err := llm.New(key, model)
	if err != nil {
		return nil
	}
	return client
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys for the HTTP server"}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (the secret is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = viper.GetString("actor-id")
			}
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				secret := uuid.NewString()
				key := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   actorID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := desk.Engine.Repo.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "actor_id": key.ActorID, "key": secret})
				}
				fmt.Printf("API key created for %s\n  id: %s\n  key: %s\nStore the key now; only its hash is kept.\n",
					key.ActorID, key.ID, secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				keys, err := desk.Engine.Repo.ListAPIKeys(ctx, actorID)
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
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				return desk.Engine.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				events, err := desk.Engine.Repo.LatestEvents(ctx, n, evtType)
				if err != nil {
					return err
				}
				return printJSONOrIndent(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDesk(cmd.Context(), func(ctx context.Context, desk *app.Desk) error {
				authCfg := server.AuthConfig{JWTSecret: os.Getenv("DRONEOPS_JWT_SECRET")}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("DRONEOPS_JWT_SECRET is required for bearer auth")
				}
				handler, err := server.New(server.Config{
					Engine:   desk.Engine,
					Detector: desk.Detector,
					Chat:     desk.Dispatcher(buildLLM("", desk.Config.LLM.Model)),
					BasePath: basePath,
					Auth:     authCfg,
				})
				if err != nil {
					return err
				}
				server.StartWebhookDispatcher(desk.Engine)
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Drone Ops API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func withDesk(ctx context.Context, fn func(context.Context, *app.Desk) error) error {
	desk, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer desk.Close()
	return fn(ctx, desk)
}

func printJSONOrIndent(v any) error {
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

func orDash(link *string) string {
	if link == nil {
		return "-"
	}
	return *link
}
