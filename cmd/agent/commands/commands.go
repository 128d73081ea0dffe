package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"coo-agent/internal/core"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var recommendEpisodes int

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Run simulated rollouts and print the top-ranked action",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		result, err := svc.Recommend(cmd.Context(), recommendEpisodes)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var (
	roiQuantity int
	roiWindow   int
)

var roiCmd = &cobra.Command{
	Use:   "roi <product-id>",
	Short: "Project ROI for restocking a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		result, err := svc.CalculateROI(args[0], roiQuantity, roiWindow)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var approveEpisodes int

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Generate a recommendation, approve it and start outcome tracking",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		result, err := svc.Recommend(cmd.Context(), approveEpisodes)
		if err != nil {
			return err
		}
		rec, err := svc.ProcessApprovedTask(cmd.Context(), result.Recommendation)
		if err != nil {
			return err
		}
		return printJSON(struct {
			Recommendation core.Recommendation `json:"recommendation"`
			Tracking       core.OutcomeRecord  `json:"tracking"`
		}{result.Recommendation, rec})
	},
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Run one tracking cycle now",
	Long: `Ingests newly approved tasks, captures outcomes whose tracking window
has closed, generates enhanced rewards, expires stale feedback requests and
evaluates whether the policy needs retraining.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		return svc.RunCycle(cmd.Context(), time.Now())
	},
}

var (
	feedbackText         string
	feedbackSatisfaction int
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <task-id>",
	Short: "Attach feedback and a 1-5 satisfaction rating to a tracked task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		if err := svc.SubmitFeedback(cmd.Context(), args[0], feedbackText, feedbackSatisfaction); err != nil {
			return err
		}
		fmt.Println("feedback recorded")
		return nil
	},
}

var curriculumTimesteps int

var retrainCmd = &cobra.Command{
	Use:   "retrain",
	Short: "Evaluate retraining conditions and retrain if warranted",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		if curriculumTimesteps > 0 {
			if err := svc.TrainCurriculum(cmd.Context(), curriculumTimesteps); err != nil {
				return err
			}
			fmt.Println("curriculum training complete")
			return nil
		}
		run, err := svc.Retrain(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(run)
	},
}

var serveInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracking scheduler until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		log.Info().Dur("interval", serveInterval).Msg("entering scheduler loop")
		return svc.Serve(cmd.Context(), serveInterval)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracking and training state",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()
		result, err := svc.Status(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	recommendCmd.Flags().IntVarP(&recommendEpisodes, "episodes", "e", 4, "parallel rollout episodes")

	approveCmd.Flags().IntVarP(&approveEpisodes, "episodes", "e", 4, "parallel rollout episodes")

	roiCmd.Flags().IntVarP(&roiQuantity, "quantity", "q", 100, "restock quantity")
	roiCmd.Flags().IntVarP(&roiWindow, "window", "w", core.DefaultTrackingDays, "projection window in days")

	feedbackCmd.Flags().StringVarP(&feedbackText, "message", "m", "", "free-form feedback")
	feedbackCmd.Flags().IntVarP(&feedbackSatisfaction, "satisfaction", "s", 3, "satisfaction rating 1-5")

	retrainCmd.Flags().IntVar(&curriculumTimesteps, "curriculum", 0, "run staged curriculum training with this timestep budget instead")

	serveCmd.Flags().DurationVarP(&serveInterval, "interval", "i", time.Hour, "cycle interval")

	rootCmd.AddCommand(recommendCmd, approveCmd, roiCmd, trackCmd, feedbackCmd, retrainCmd, serveCmd, statusCmd)
}
