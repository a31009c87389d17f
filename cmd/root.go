package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/doe-wizard/doe-opt/opt"
)

var (
	// CLI flags for the optimization run
	slug            string  // Session identifier; artifacts land under artifactsDir/slug
	logLevel        string  // Log verbosity level
	artifactsDir    string  // Artifact root directory
	defaultsPath    string  // Optional defaults.yaml overriding settings/thresholds
	profilePath     string  // Session profile JSON
	championPath    string  // Champion bundle JSON
	trainingPath    string  // Training preview JSON (novelty reference)
	batchSize       int     // Requested proposals per run
	acquisition     string  // qEI | EI | UCB | PI
	ucbK            float64 // Exploration weight for UCB
	uncertaintyMode string  // native | approx_rf | deterministic
	safetyK         float64 // Safety band width (k * sigma around batch median)
	noveltyEps      float64 // Minimum Gower distance to training points
	poolSize        int     // Candidate pool size override (0 = derived)
	seed            int64   // Seed for candidate sampling
	lockPolicy      string  // Categorical lock tie-break: error | first | require-explicit
	autoAck         bool    // Stamp the ack record immediately after the run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "doe-opt",
	Short: "Constrained Bayesian-optimization proposal engine for DOE sessions",
}

// runCmd executes one headless optimization pass using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one optimization pass and write session artifacts",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		settings := opt.Settings{
			Acquisition:     acquisition,
			BatchSize:       batchSize,
			UCBK:            ucbK,
			UncertaintyMode: opt.UncertaintyMode(uncertaintyMode),
			Seed:            seed,
			SafetyK:         safetyK,
			NoveltyEps:      noveltyEps,
			PoolSize:        poolSize,
		}
		thresholds := opt.DefaultThresholds()
		if defaultsPath != "" {
			settings, thresholds = applyDefaultsFile(defaultsPath, settings, thresholds)
		}

		profile := loadProfile(profilePath)
		champion := loadChampion(championPath)
		training := loadTrainingPreview(trainingPath)

		req := opt.RunRequest{
			Slug:            slug,
			Profile:         profile,
			Champion:        champion,
			Model:           demoModel{},
			TrainingPreview: training,
			Settings:        settings,
			Thresholds:      thresholds,
			LockPolicy:      opt.LockPolicy(lockPolicy),
			ArtifactsDir:    artifactsDir,
			AutoAck:         autoAck,
		}

		res, err := opt.RunHeadless(req)
		if err != nil {
			logrus.Fatalf("Optimization run failed: %v", err)
		}

		logrus.Infof("Run complete: ladder=%s, HITL level %d, %d proposals",
			res.LadderStep, res.HITL.Level, len(res.Proposals))
		for _, msg := range res.HITL.Messages {
			logrus.Warnf("HITL: %s", msg)
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&slug, "slug", "session", "Session identifier for artifact paths")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "artifacts", "Artifact root directory")
	runCmd.Flags().StringVar(&defaultsPath, "defaults", "", "Path to defaults.yaml overriding settings/thresholds")

	// Session inputs
	runCmd.Flags().StringVar(&profilePath, "profile", "", "Path to session profile JSON (synthetic demo profile if omitted)")
	runCmd.Flags().StringVar(&championPath, "champion", "", "Path to champion bundle JSON (synthetic demo champion if omitted)")
	runCmd.Flags().StringVar(&trainingPath, "training-preview", "", "Path to training preview JSON for the novelty filter")

	// Optimization settings
	runCmd.Flags().IntVar(&batchSize, "batch-size", 8, "Number of proposals to select")
	runCmd.Flags().StringVar(&acquisition, "acquisition", "qEI", "Acquisition function (qEI, EI, UCB, PI)")
	runCmd.Flags().Float64Var(&ucbK, "ucb-k", 1.96, "Exploration weight for UCB")
	runCmd.Flags().StringVar(&uncertaintyMode, "uncertainty", "approx_rf", "Uncertainty mode (native, approx_rf, deterministic)")
	runCmd.Flags().Float64Var(&safetyK, "safety-k", 2.0, "Safety band width in sigmas around the batch median")
	runCmd.Flags().Float64Var(&noveltyEps, "novelty-eps", 0.05, "Minimum Gower distance to training points")
	runCmd.Flags().IntVar(&poolSize, "pool-size", 0, "Candidate pool size (0 = max(128, 20*batch))")
	runCmd.Flags().Int64Var(&seed, "seed", 1729, "Seed for candidate sampling")
	runCmd.Flags().StringVar(&lockPolicy, "lock-policy", "error", "Categorical lock tie-break (error, first, require-explicit)")
	runCmd.Flags().BoolVar(&autoAck, "auto-ack", false, "Stamp the HITL ack record immediately")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
