package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "lifequest/internal/cli"
	"lifequest/internal/config"
	"lifequest/internal/game"
	"lifequest/internal/syncq"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type app struct {
	apiBase string
	home    string
}

func main() {
	cfg := config.LoadCLIFromEnv()
	a := &app{apiBase: cfg.APIBaseURL, home: cfg.Home}

	root := &cobra.Command{
		Use:          "lq",
		Short:        "LifeQuest: a financial life simulator",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&a.apiBase, "api", a.apiBase, "LifeQuest API base URL")

	root.AddCommand(
		a.newSignupCmd(),
		a.newLoginCmd(),
		a.newLogoutCmd(),
		a.newNewGameCmd(),
		a.newGamesCmd(),
		a.newUseCmd(),
		a.newStatusCmd(),
		a.newYearCmd(),
		a.newEventCmd(),
		a.newChooseCmd(),
		a.newPayCmd(),
		a.newTaxesCmd(),
		a.newInsuranceCmd(),
		a.newSkillsCmd(),
		a.newCrisisCmd(),
		a.newLogCmd(),
		a.newExportCmd(),
		a.newImportCmd(),
		a.newSavesCmd(),
		a.newSyncCmd(),
		a.newPlayCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) client() *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(a.apiBase), "/"))
}

func (a *app) session() (cl.Session, error) {
	sess, err := cl.LoadSession(a.home)
	if err != nil {
		return cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return sess, nil
}

// activeGame loads the session and insists on a selected game.
func (a *app) activeGame() (cl.Session, error) {
	sess, err := a.session()
	if err != nil {
		return sess, err
	}
	if sess.ActiveGameID == "" {
		return sess, errors.New("no active game: run `lq new` or `lq use <game-id>`")
	}
	return sess, nil
}

func (a *app) saveSessionFrom(s cl.Session) error {
	return cl.SaveSession(a.home, s)
}

func (a *app) newSignupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create a LifeQuest account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := a.client().Signup(ctx, email, password)
			if err != nil {
				return err
			}
			if strings.TrimSpace(session.AccessToken) == "" {
				printWarn("Signup created. Verify your email, then run `lq login`.")
				return nil
			}
			if err := a.saveSessionFrom(cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}); err != nil {
				return err
			}
			printSuccess("Signup complete. Session saved.")
			return nil
		},
	}
}

func (a *app) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login to LifeQuest",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			session, err := a.client().Login(ctx, email, password)
			if err != nil {
				return err
			}
			prev, _ := cl.LoadSession(a.home)
			next := cl.Session{
				AccessToken:  session.AccessToken,
				RefreshToken: session.RefreshToken,
				Email:        session.User.Email,
				UserID:       session.User.ID,
			}
			if prev.UserID == next.UserID {
				next.ActiveGameID = prev.ActiveGameID
			}
			if err := a.saveSessionFrom(next); err != nil {
				return err
			}
			printSuccess("Login successful.")
			return nil
		},
	}
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(a.home); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func (a *app) newNewGameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Start a new life and make it the active game",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			name, err := promptRequired("Your name")
			if err != nil {
				return err
			}
			if err := game.ValidatePlayerName(name); err != nil {
				return err
			}
			career, err := promptRequired("Career")
			if err != nil {
				return err
			}
			salary, err := promptFloat("Monthly salary (₹)", 1)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			view, err := a.client().CreateGame(ctx, sess.AccessToken, game.Profile{Name: name, Career: career, MonthlySalary: salary}, uuid.NewString())
			if err != nil {
				return err
			}
			sess.ActiveGameID = view.ID
			if err := a.saveSessionFrom(sess); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Welcome to LifeQuest, %s. Game %s is now active.", view.Ledger.Name, view.ID))
			renderGame(view)
			return nil
		},
	}
}

func (a *app) newGamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List your games",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			games, err := a.client().ListGames(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderGames(games, sess.ActiveGameID)
			return nil
		},
	}
}

func (a *app) newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <game-id>",
		Short: "Select the active game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			view, err := a.client().Game(ctx, sess.AccessToken, args[0])
			if err != nil {
				return err
			}
			sess.ActiveGameID = view.ID
			if err := a.saveSessionFrom(sess); err != nil {
				return err
			}
			printSuccess("Active game: " + view.ID)
			return nil
		},
	}
}

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active game",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.activeGame()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			view, err := a.client().Game(ctx, sess.AccessToken, sess.ActiveGameID)
			if err != nil {
				return err
			}
			renderGame(view)
			return nil
		},
	}
}

// dispatch sends an intent for the active game. When the API cannot be
// reached the intent is queued for `lq sync`.
func (a *app) dispatch(cmd *cobra.Command, in game.Intent) error {
	sess, err := a.activeGame()
	if err != nil {
		return err
	}
	in.IdempotencyKey = uuid.NewString()
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	view, err := a.client().Dispatch(ctx, sess.AccessToken, sess.ActiveGameID, in)
	if err != nil {
		return a.queueOnNetworkError(err, game.SyncCommand{GameID: sess.ActiveGameID, Intent: in})
	}
	renderGame(view)
	return nil
}

func (a *app) newYearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "year",
		Short: "Advance one year",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, game.Intent{Kind: game.CmdAdvanceYear})
		},
	}
}

func (a *app) newEventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "event",
		Short: "Draw this year's life event",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.activeGame()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			view, err := a.client().NextEvent(ctx, sess.AccessToken, sess.ActiveGameID, uuid.NewString())
			if err != nil {
				return err
			}
			renderEvent(view)
			return nil
		},
	}
}

func (a *app) newChooseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "choose [number]",
		Short: "Resolve the current event with a choice (omit for consequences)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := game.Intent{Kind: game.CmdResolveChoice}
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("choice must be a positive number")
				}
				idx := n - 1
				in.ChoiceIndex = &idx
			}
			return a.dispatch(cmd, in)
		},
	}
}

func (a *app) newPayCmd() *cobra.Command {
	methods := []string{
		string(game.PayEmergencyFund),
		string(game.PaySellAsset),
		string(game.PayLoan),
		string(game.PayHardship),
	}
	return &cobra.Command{
		Use:       "pay <" + strings.Join(methods, "|") + ">",
		Short:     "Cover a survival event",
		Args:      cobra.ExactArgs(1),
		ValidArgs: methods,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, game.Intent{Kind: game.CmdResolveSurvival, Method: game.SurvivalMethod(args[0])})
		},
	}
}

func (a *app) newTaxesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "taxes",
		Short: "File this year's taxes",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.activeGame()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := a.client()
			items, err := client.TaxItems(ctx)
			if err != nil {
				return err
			}
			claimed, err := promptDeductions(items)
			if err != nil {
				return err
			}
			out, err := client.FileTaxes(ctx, sess.AccessToken, sess.ActiveGameID, claimed, uuid.NewString())
			if err != nil {
				return err
			}
			renderTaxFiling(out.Filing)
			return nil
		},
	}
}

func (a *app) newInsuranceCmd() *cobra.Command {
	ins := &cobra.Command{
		Use:   "insurance",
		Short: "Show insurance quotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.activeGame()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			quotes, err := a.client().InsuranceQuotes(ctx, sess.AccessToken, sess.ActiveGameID)
			if err != nil {
				return err
			}
			renderQuotes(quotes)
			return nil
		},
	}
	ins.AddCommand(&cobra.Command{
		Use:   "buy <health|vehicle|property>",
		Short: "Buy a policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, game.Intent{Kind: game.CmdBuyInsurance, InsuranceType: args[0]})
		},
	})
	return ins
}

func (a *app) newSkillsCmd() *cobra.Command {
	skills := &cobra.Command{
		Use:   "skills",
		Short: "Show the skill tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.activeGame()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			view, err := a.client().Game(ctx, sess.AccessToken, sess.ActiveGameID)
			if err != nil {
				return err
			}
			renderSkills(view)
			return nil
		},
	}
	skills.AddCommand(&cobra.Command{
		Use:   "unlock <skill-id>",
		Short: "Spend XP on a skill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.dispatch(cmd, game.Intent{Kind: game.CmdActivateSkill, Skill: game.SkillID(args[0])})
		},
	})
	return skills
}

func (a *app) newCrisisCmd() *cobra.Command {
	crisis := &cobra.Command{
		Use:   "crisis",
		Short: "Economic crisis commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			crises, err := a.client().Crises(ctx)
			if err != nil {
				return err
			}
			renderCrises(crises)
			return nil
		},
	}
	crisis.AddCommand(
		&cobra.Command{
			Use:   "start <name>",
			Short: "Trigger a crisis from the catalog",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.dispatch(cmd, game.Intent{Kind: game.CmdTriggerCrisis, CrisisName: strings.Join(args, " ")})
			},
		},
		&cobra.Command{
			Use:   "month",
			Short: "Survive one more month",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.dispatch(cmd, game.Intent{Kind: game.CmdAdvanceCrisisMonth})
			},
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Undo the last crisis month",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.dispatch(cmd, game.Intent{Kind: game.CmdRollbackCrisisMonth})
			},
		},
		&cobra.Command{
			Use:   "end <won|lost>",
			Short: "Close out a finished crisis",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.dispatch(cmd, game.Intent{Kind: game.CmdEndCrisis, Result: game.CrisisResult(args[0])})
			},
		},
	)
	return crisis
}

func (a *app) newLogCmd() *cobra.Command {
	var tag string
	c := &cobra.Command{
		Use:   "log",
		Short: "Show the life log",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.activeGame()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			entries, err := a.client().EventLog(ctx, sess.AccessToken, sess.ActiveGameID, tag)
			if err != nil {
				return err
			}
			renderLog(entries)
			return nil
		},
	}
	c.Flags().StringVar(&tag, "tag", "", "only entries with this tag (choice, survival, insurance, crisis, ...)")
	return c
}

func (a *app) newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the active game's save document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.activeGame()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			doc, err := a.client().Export(ctx, sess.AccessToken, sess.ActiveGameID)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				fmt.Println(string(doc))
				return nil
			}
			if err := os.WriteFile(args[0], doc, 0o600); err != nil {
				return err
			}
			printSuccess("Saved to " + args[0])
			return nil
		},
	}
}

func (a *app) newImportCmd() *cobra.Command {
	var replace bool
	c := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a save document as a new game (or over the active one with --replace)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			target := ""
			if replace {
				if sess.ActiveGameID == "" {
					return errors.New("--replace needs an active game")
				}
				target = sess.ActiveGameID
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			view, err := a.client().Import(ctx, sess.AccessToken, target, doc, uuid.NewString())
			if err != nil {
				return err
			}
			sess.ActiveGameID = view.ID
			if err := a.saveSessionFrom(sess); err != nil {
				return err
			}
			printSuccess("Imported " + view.Ledger.Name + " into game " + view.ID)
			return nil
		},
	}
	c.Flags().BoolVar(&replace, "replace", false, "replace the active game's ledger")
	return c
}

func (a *app) newSavesCmd() *cobra.Command {
	saves := &cobra.Command{
		Use:   "saves",
		Short: "List cloud save slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			list, err := a.client().ListSaves(ctx, sess.AccessToken)
			if err != nil {
				return err
			}
			renderSaves(list)
			return nil
		},
	}
	saves.AddCommand(
		&cobra.Command{
			Use:   "put [slot]",
			Short: "Upload the active game to a slot",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := a.activeGame()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				save, err := a.client().PutSave(ctx, sess.AccessToken, slotArg(args), sess.ActiveGameID)
				if err != nil {
					return err
				}
				printSuccess(fmt.Sprintf("Saved %s (age %d) to slot %q.", save.Name, save.Age, save.Slot))
				return nil
			},
		},
		&cobra.Command{
			Use:   "restore [slot]",
			Short: "Restore a slot as a new game",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := a.session()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				view, err := a.client().RestoreSave(ctx, sess.AccessToken, slotArg(args), "", uuid.NewString())
				if err != nil {
					return err
				}
				sess.ActiveGameID = view.ID
				if err := a.saveSessionFrom(sess); err != nil {
					return err
				}
				printSuccess("Restored into game " + view.ID)
				return nil
			},
		},
	)
	return saves
}

func slotArg(args []string) string {
	if len(args) == 0 {
		return "default"
	}
	return args[0]
}

func (a *app) newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay intents queued while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			queue := syncq.New(a.home)
			pending, err := queue.Load()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			results, err := a.client().SyncReplay(ctx, sess.AccessToken, pending)
			if err != nil {
				return err
			}
			if err := queue.Settle(results); err != nil {
				return err
			}
			renderSyncResults(results)
			return nil
		},
	}
}

func (a *app) newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play the active game in an interactive terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.activeGame()
			if err != nil {
				return err
			}
			return runTUI(cmd.Context(), a.client(), sess)
		},
	}
}

func (a *app) queueOnNetworkError(err error, c game.SyncCommand) error {
	if !cl.IsOffline(err) {
		return err
	}
	if qerr := syncq.New(a.home).Push(c); qerr != nil {
		return fmt.Errorf("request failed (%v) and could not be queued: %w", err, qerr)
	}
	printWarn(fmt.Sprintf("API unreachable; %s queued for `lq sync`.", c.Intent.Kind))
	return nil
}
