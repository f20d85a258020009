package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/candidate-vetter/internal/evaluation"
	"github.com/spigell/candidate-vetter/internal/logger"
)

const (
	PromptSummary          = "Summary"
	PromptReportByLanguage = "Report repositories by language"
	PromptReportToFile     = "Dump report to file"
	PromptExit             = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptSummary, PromptReportByLanguage, PromptReportToFile, PromptExit},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a candidate from a résumé file",
	Run: func(cmd *cobra.Command, _ []string) {
		evaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringP("resume", "r", "", "path to the résumé text file (required)")
	evaluateCmd.Flags().StringP("title", "t", "", "job title")
	evaluateCmd.Flags().StringSliceP("skills", "s", nil, "required skills, comma separated")
	evaluateCmd.Flags().StringSlice("requirements", nil, "job requirements")
	evaluateCmd.Flags().String("experience", "", "required experience, e.g. '5+ years'")
	evaluateCmd.Flags().BoolP("auto-approve", "y", false, "print the summary and exit without prompting")

	evaluateCmd.MarkFlagRequired("resume")
}

func evaluate(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the candidate-vetter", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	req, err := requestFromFlags(cmd)
	if err != nil {
		logger.Fatal("reading the request", zap.Error(err))
	}

	svc, err := newService(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the service", zap.Error(err))
	}

	report, err := svc.engine.Evaluate(ctx, req)
	if err != nil {
		logger.Fatal("evaluation failed", zap.Error(err))
	}
	logger.Debug("limiter keys swept", zap.Int("count", svc.sweep()))

	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	action := PromptSummary
	for {
		if !autoApprove {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		if err := handleAction(action, logger, report); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}

		if autoApprove {
			return
		}
	}
}

func requestFromFlags(cmd *cobra.Command) (evaluation.Request, error) {
	path, _ := cmd.Flags().GetString("resume")
	data, err := os.ReadFile(path)
	if err != nil {
		return evaluation.Request{}, fmt.Errorf("reading resume: %w", err)
	}

	title, _ := cmd.Flags().GetString("title")
	skills, _ := cmd.Flags().GetStringSlice("skills")
	requirements, _ := cmd.Flags().GetStringSlice("requirements")
	experience, _ := cmd.Flags().GetString("experience")

	return evaluation.Request{
		Resume: string(data),
		Job: evaluation.JobDescription{
			Title:        strings.TrimSpace(title),
			Skills:       skills,
			Requirements: requirements,
			Experience:   strings.TrimSpace(experience),
		},
	}, nil
}

func handleAction(action string, logger *zap.Logger, report *evaluation.Report) error {
	switch action {
	case PromptSummary:
		logSummary(logger, report)
		return nil
	case PromptReportByLanguage:
		if report.GitHub == nil || report.GitHub.Repositories == nil {
			logger.Info("no repositories to report")
			return nil
		}
		pretty, _ := json.MarshalIndent(report.GitHub.Repositories.ReportByLanguage(), "", "  ")
		logger.Info(string(pretty), zap.Int("repositories count", report.GitHub.Repositories.Len()))
		return nil
	case PromptReportToFile:
		filename, err := dumpToTmpFile(report)
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		logger.Info("dumping report to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func logSummary(log *zap.Logger, report *evaluation.Report) {
	log = log.With(zap.String("request_id", report.RequestID))

	if gh := report.GitHub; gh != nil {
		log.Info("github evaluation",
			zap.String("verdict", string(gh.HiringVerdict.Decision)),
			zap.Float64("confidence", gh.HiringVerdict.Confidence),
			zap.Float64("technical", gh.TechnicalScore),
			zap.Float64("activity", gh.ActivityScore),
			zap.Float64("authenticity", gh.AuthenticityScore),
			zap.Int("analyzed", len(gh.RepositoryAnalysis)),
			zap.Int("fallbacks", report.FallbackCount),
			zap.Strings("red_flags", gh.RedFlags),
			zap.Strings("reasoning", gh.HiringVerdict.Reasoning),
		)
		log.Debug("repository selection", zap.Any("steps", gh.Selection))
	} else if report.GitHubError != nil {
		log.Warn("github evaluation unavailable",
			zap.String("kind", string(report.GitHubError.Kind)),
			zap.String("error", report.GitHubError.Message),
		)
	}

	if li := report.LinkedIn; li != nil {
		log.Info("linkedin evaluation",
			zap.String("verdict", string(li.Verdict.Decision)),
			zap.Float64("honesty", li.Scores.Honesty),
			zap.Float64("completeness", li.Scores.Completeness),
			zap.Float64("professional", li.Scores.Professional),
			zap.Int("inconsistencies", len(li.Inconsistencies)),
			zap.Strings("recommendations", li.Recommendations),
		)
	} else if report.LinkedInError != nil {
		log.Warn("linkedin evaluation unavailable",
			zap.String("kind", string(report.LinkedInError.Kind)),
			zap.String("error", report.LinkedInError.Message),
		)
	}
}

func dumpToTmpFile(report *evaluation.Report) (string, error) {
	file, err := os.CreateTemp("", "evaluation_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return "", err
	}
	return file.Name(), nil
}
