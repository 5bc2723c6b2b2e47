package main

import (
	"context"
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

	"talentline/internal/app"
	"talentline/internal/db"
	"talentline/internal/domain"
	"talentline/internal/engine"
	"talentline/internal/repo"
	"talentline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Talentline CLI",
	Long: `Talentline tracks candidates through the hiring funnel.
Concepts:
- Workspace: the .talentline directory holding the SQLite database.
- Candidate: the aggregate moving Applied -> assessments -> interviews -> offer -> hired, with Rejected/Withdrawn as exits.
- Assessments and interviews: attached in sequence; statuses derive from the clock (Scheduled -> In Progress -> Completed) and from score+remarks (Evaluated).
- Gates: a new assessment needs the previous one evaluated; interviews need every assessment evaluated.
- Event log: the audit diary, view with 'tl log tail'.`,
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
	viper.SetEnvPrefix("TALENTLINE")
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
	rootCmd.AddCommand(candidateCmd())
	rootCmd.AddCommand(assessmentCmd())
	rootCmd.AddCommand(interviewCmd())
	rootCmd.AddCommand(offerCmd())
	rootCmd.AddCommand(hireCmd())
	rootCmd.AddCommand(rejectCmd())
	rootCmd.AddCommand(definitionCmd())
	rootCmd.AddCommand(positionCmd())
	rootCmd.AddCommand(evaluatorCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func actorID() string { return viper.GetString("actor-id") }

func candidateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "candidate", Short: "Manage candidates"}
	cmd.AddCommand(candidateListCmd())
	cmd.AddCommand(candidateShowCmd())
	cmd.AddCommand(candidateCreateCmd())
	cmd.AddCommand(candidateStatusCmd())
	return cmd
}

func candidateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListCandidates(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Stage", "Assessments", "Interviews"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.FirstName + " " + c.LastName, c.Email, c.CurrentStatus, len(c.Assessments), len(c.Interviews)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func candidateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <candidate-id>",
		Short: "Show a candidate with refreshed statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetCandidate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
}

func candidateCreateCmd() *cobra.Command {
	var firstName, lastName, email, phone string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an application",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCandidate(ctx, engine.CandidateCreateOptions{
					FirstName: firstName,
					LastName:  lastName,
					Email:     email,
					Phone:     phone,
					ActorID:   actorID(),
				})
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	return cmd
}

func candidateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <candidate-id> <stage>",
		Short: "Administrative status override",
		Long:  "Sets the pipeline stage verbatim, bypassing derivation. Valid stages:\n  " + strings.Join(domain.Stages, "\n  "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.OverrideStatus(ctx, args[0], args[1], actorID())
				if err != nil {
					return err
				}
				fmt.Printf("candidate %s is now %q\n", c.ID, c.CurrentStatus)
				return nil
			})
		},
	}
}

func assessmentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "assessment", Short: "Candidate assessments"}
	cmd.AddCommand(assessmentAttachCmd())
	cmd.AddCommand(assessmentCompleteCmd())
	cmd.AddCommand(assessmentEvaluateCmd())
	return cmd
}

func assessmentAttachCmd() *cobra.Command {
	var definitionID, evaluatorID, scheduled string
	cmd := &cobra.Command{
		Use:   "attach <candidate-id>",
		Short: "Schedule an assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AttachAssessment(ctx, engine.AttachAssessmentOptions{
					CandidateID:   args[0],
					AssessmentID:  definitionID,
					EvaluatorID:   evaluatorID,
					ScheduledDate: scheduled,
					ActorID:       actorID(),
				})
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&definitionID, "definition", "", "assessment definition id")
	cmd.Flags().StringVar(&evaluatorID, "evaluator", "", "evaluator id")
	cmd.Flags().StringVar(&scheduled, "at", "", "scheduled date (RFC3339)")
	return cmd
}

func assessmentCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <candidate-id> <assessment-id>",
		Short: "Mark an assessment completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CompleteAssessment(ctx, args[0], args[1], actorID())
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
}

func assessmentEvaluateCmd() *cobra.Command {
	var score int
	var remarks string
	cmd := &cobra.Command{
		Use:   "evaluate <candidate-id> <assessment-id>",
		Short: "Record score and remarks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.EvaluateAssessmentOptions{
					CandidateID:  args[0],
					AssessmentID: args[1],
					ActorID:      actorID(),
				}
				if cmd.Flags().Changed("score") {
					opts.Score = &score
				}
				if cmd.Flags().Changed("remarks") {
					opts.Remarks = &remarks
				}
				c, err := e.EvaluateAssessment(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().IntVar(&score, "score", 0, "score")
	cmd.Flags().StringVar(&remarks, "remarks", "", "remarks")
	return cmd
}

func interviewCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "interview", Short: "Candidate interviews"}
	cmd.AddCommand(interviewAttachCmd())
	cmd.AddCommand(interviewCompleteCmd())
	cmd.AddCommand(interviewEvaluateCmd())
	return cmd
}

func interviewAttachCmd() *cobra.Command {
	var ivType, location, evaluatorID, scheduled string
	cmd := &cobra.Command{
		Use:   "attach <candidate-id>",
		Short: "Schedule an interview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AttachInterview(ctx, engine.AttachInterviewOptions{
					CandidateID:       args[0],
					InterviewType:     ivType,
					InterviewLocation: location,
					EvaluatorID:       evaluatorID,
					ScheduledDatetime: scheduled,
					ActorID:           actorID(),
				})
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&ivType, "type", "", "interview type (e.g. Technical, HR)")
	cmd.Flags().StringVar(&location, "location", "", "interview location")
	cmd.Flags().StringVar(&evaluatorID, "evaluator", "", "evaluator id")
	cmd.Flags().StringVar(&scheduled, "at", "", "scheduled datetime (RFC3339)")
	return cmd
}

func interviewCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <candidate-id> <interview-id>",
		Short: "Mark an interview conducted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CompleteInterview(ctx, args[0], args[1], actorID())
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
}

func interviewEvaluateCmd() *cobra.Command {
	var score int
	var remarks string
	cmd := &cobra.Command{
		Use:   "evaluate <candidate-id> <interview-id>",
		Short: "Record interview score and remarks",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.EvaluateInterviewOptions{
					CandidateID: args[0],
					InterviewID: args[1],
					ActorID:     actorID(),
				}
				if cmd.Flags().Changed("score") {
					opts.Score = &score
				}
				if cmd.Flags().Changed("remarks") {
					opts.Remarks = &remarks
				}
				c, err := e.EvaluateInterview(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().IntVar(&score, "score", 0, "score")
	cmd.Flags().StringVar(&remarks, "remarks", "", "remarks")
	return cmd
}

func offerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "offer", Short: "Offers"}
	cmd.AddCommand(offerMakeCmd())
	cmd.AddCommand(offerUpdateCmd())
	return cmd
}

func offerMakeCmd() *cobra.Command {
	var positionID, benefits string
	var salary float64
	cmd := &cobra.Command{
		Use:   "make <candidate-id>",
		Short: "Extend an offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.MakeOffer(ctx, engine.MakeOfferOptions{
					CandidateID: args[0],
					PositionID:  positionID,
					Salary:      salary,
					Benefits:    benefits,
					ActorID:     actorID(),
				})
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&positionID, "position", "", "position id")
	cmd.Flags().Float64Var(&salary, "salary", 0, "offered salary")
	cmd.Flags().StringVar(&benefits, "benefits", "", "benefits summary")
	return cmd
}

func offerUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <candidate-id> <Pending|Accepted|Rejected>",
		Short: "Update offer status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateOfferStatus(ctx, args[0], args[1], actorID())
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
}

func hireCmd() *cobra.Command {
	var positionID, startDate string
	var salary float64
	cmd := &cobra.Command{
		Use:   "hire <candidate-id>",
		Short: "Record a hire",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Hire(ctx, engine.HireOptions{
					CandidateID:  args[0],
					PositionID:   positionID,
					AgreedSalary: salary,
					StartDate:    startDate,
					ActorID:      actorID(),
				})
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&positionID, "position", "", "position id")
	cmd.Flags().Float64Var(&salary, "salary", 0, "agreed salary")
	cmd.Flags().StringVar(&startDate, "start-date", "", "start date (RFC3339)")
	return cmd
}

func rejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <candidate-id>",
		Short: "Reject a candidate, cancelling open assessments and interviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Reject(ctx, args[0], reason, actorID())
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func definitionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "definition", Short: "Assessment definitions"}
	var name, description string
	var maxScore int
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an assessment definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				d := domain.AssessmentDefinition{
					ID:          uuid.New().String(),
					Name:        name,
					Description: description,
					MaxScore:    maxScore,
					CreatedAt:   time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAssessmentDefinition(ctx, d); err != nil {
					return err
				}
				return printJSON(d)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "definition name")
	add.Flags().StringVar(&description, "description", "", "description")
	add.Flags().IntVar(&maxScore, "max-score", 100, "maximum score")
	list := &cobra.Command{
		Use:   "list",
		Short: "List assessment definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAssessmentDefinitions(ctx)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	cmd.AddCommand(add, list)
	return cmd
}

func positionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "position", Short: "Open positions"}
	var title, department string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a position",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p := domain.Position{
					ID:         uuid.New().String(),
					Title:      title,
					Department: department,
					CreatedAt:  time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertPosition(ctx, p); err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	add.Flags().StringVar(&title, "title", "", "position title")
	add.Flags().StringVar(&department, "department", "", "department")
	list := &cobra.Command{
		Use:   "list",
		Short: "List positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListPositions(ctx)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	cmd.AddCommand(add, list)
	return cmd
}

func evaluatorCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "evaluator", Short: "Evaluators"}
	var name, email string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an evaluator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				ev := domain.Evaluator{
					ID:        uuid.New().String(),
					Name:      name,
					Email:     email,
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertEvaluator(ctx, ev); err != nil {
					return err
				}
				return printJSON(ev)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "evaluator name")
	add.Flags().StringVar(&email, "email", "", "evaluator email")
	list := &cobra.Command{
		Use:   "list",
		Short: "List evaluators",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListEvaluators(ctx)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	cmd.AddCommand(add, list)
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "API keys for the HTTP API"}
	var name string
	create := &cobra.Command{
		Use:   "create <key>",
		Short: "Store an API key for the current actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				key := domain.APIKey{
					ID:      uuid.New().String(),
					ActorID: actorID(),
					Name:    name,
					KeyHash: repo.HashAPIKey(args[0]),
				}
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				fmt.Printf("api key %s stored for actor %s\n", key.ID, key.ActorID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key label")
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, "")
				if err != nil {
					return err
				}
				return printJSON(keys)
			})
		},
	}
	cmd.AddCommand(create, list)
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Audit event log"}
	var limit int
	tail := &cobra.Command{
		Use:   "tail <candidate-id>",
		Short: "Show recent events for a candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.ListEvents(ctx, args[0], limit, 0)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Actor", "Payload"})
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.TS, ev.Type, ev.EntityID, ev.ActorID, ev.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&limit, "limit", 20, "number of events")
	cmd.AddCommand(tail)
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer env.Close()
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("TALENTLINE_JWT_SECRET"),
				AllowLegacyActorHeader: env.Config.Server.AllowLegacyActorHeader,
			}
			if authCfg.JWTSecret == "" {
				authCfg.JWTSecret = env.Config.Server.JWTSecret
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("TALENTLINE_JWT_SECRET is required for bearer auth")
			}
			if basePath == "" {
				basePath = env.Config.Server.BasePath
			}
			handler, err := server.New(server.Config{Engine: env.Engine, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving Talentline API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path")
	return cmd
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	env, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env.Engine)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		return fn(ctx, e.Repo)
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
