package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/core"
	"github.com/agnosto/board-collector/db"
	"github.com/agnosto/board-collector/db/mongostore"
	"github.com/agnosto/board-collector/texts"
	"github.com/agnosto/board-collector/threads"
)

type DiagnosisSuite struct {
	flags    DiagnosisFlags
	cfg      *config.Config
	report   *strings.Builder
	failures int
}

func NewDiagnosisSuite(flags DiagnosisFlags, cfg *config.Config) *DiagnosisSuite {
	return &DiagnosisSuite{
		flags:  flags,
		cfg:    cfg,
		report: &strings.Builder{},
	}
}

// Run executes every check, saves the report and returns the number of
// failed checks.
func (ds *DiagnosisSuite) Run() int {
	ds.log("Starting diagnosis suite...")
	ds.log(fmt.Sprintf("Verbosity Level: %d", ds.flags.Level))
	ds.log("----------------------------------")

	ds.testConfig()
	if ds.cfg != nil {
		ds.testDirectories()
		ds.testStorage()
		if !ds.flags.SkipAPI {
			ds.testBoardAPI()
			ds.testScorer()
		}
	}

	ds.log("----------------------------------")
	ds.log(fmt.Sprintf("Diagnosis suite finished with %d failure(s).", ds.failures))

	ds.saveReport()
	return ds.failures
}

func (ds *DiagnosisSuite) log(message string) {
	fmt.Println(message)
	ds.report.WriteString(message + "\n")
}

func (ds *DiagnosisSuite) fail(message string) {
	ds.failures++
	ds.log(" - FAIL: " + message)
}

func (ds *DiagnosisSuite) sanitizePath(path string) string {
	re := regexp.MustCompile(`(?i)(C:\\Users\\[^\\]+|/home/[^/]+|/Users/[^/]+)`)
	return re.ReplaceAllString(path, "[REDACTED_USER_PATH]")
}

func (ds *DiagnosisSuite) testConfig() {
	ds.log("\n[1] Testing Configuration")
	if ds.cfg == nil {
		ds.fail("Configuration file could not be loaded. Please run the app once without flags to generate one.")
		return
	}

	ds.log(fmt.Sprintf(" - Config path: %s", ds.sanitizePath(config.GetConfigPath())))
	if err := ds.cfg.Validate(); err != nil {
		ds.fail(fmt.Sprintf("Config is invalid: %v", err))
		return
	}
	ds.log(" - PASS: Config loaded successfully.")

	redactedCfg := *ds.cfg
	redactedCfg.Options.SaveLocation = ds.sanitizePath(redactedCfg.Options.SaveLocation)
	redactedCfg.Storage.MongoURI = "[REDACTED]"
	redactedCfg.Toxicity.APIKey = "[REDACTED]"
	redactedCfg.Notifications.DiscordWebhook = "[REDACTED]"

	if ds.flags.Level > 1 {
		ds.log(fmt.Sprintf(" - Loaded config (redacted): %+v", redactedCfg))
	}
}

func (ds *DiagnosisSuite) testDirectories() {
	ds.log("\n[2] Testing Directories")
	for _, dir := range []string{ds.cfg.ImageDir(), ds.cfg.OptimizedDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ds.fail(fmt.Sprintf("Cannot create %s: %v", ds.sanitizePath(dir), err))
			continue
		}
		marker := filepath.Join(dir, ".diagnosis")
		if err := os.WriteFile(marker, []byte("ok"), 0644); err != nil {
			ds.fail(fmt.Sprintf("%s is not writable: %v", ds.sanitizePath(dir), err))
			continue
		}
		os.Remove(marker)
		ds.log(fmt.Sprintf(" - PASS: %s is writable.", ds.sanitizePath(dir)))
	}
}

func (ds *DiagnosisSuite) testStorage() {
	ds.log(fmt.Sprintf("\n[3] Testing Storage (%s)", ds.cfg.Storage.Backend))

	if ds.cfg.Storage.Backend == "mongo" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		store, err := mongostore.New(ctx, ds.cfg.Storage.MongoURI, ds.cfg.Storage.MongoDatabase)
		if err != nil {
			ds.fail(fmt.Sprintf("Could not connect to mongo: %v", err))
			return
		}
		store.Close()
		ds.log(" - PASS: Connected to mongo.")
		return
	}

	dbPath := filepath.Join(ds.cfg.Options.SaveLocation, db.FileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		ds.log(" - INFO: Database does not exist yet; it is created on the first run.")
		return
	}

	result, err := db.IntegrityCheck(dbPath)
	if err != nil {
		ds.fail(fmt.Sprintf("Integrity check failed to run: %v", err))
		return
	}
	if result != "ok" {
		ds.fail(fmt.Sprintf("Integrity check reported: %s", result))
		return
	}
	ds.log(" - PASS: Database integrity ok.")
}

func (ds *DiagnosisSuite) testBoardAPI() {
	ds.log(fmt.Sprintf("\n[4] Testing Board API (/%s/)", ds.cfg.Board.Name))

	ctx, cancel := context.WithTimeout(context.Background(), ds.cfg.RequestTimeout())
	defer cancel()

	client := core.NewClient(ds.cfg)
	pages, _, err := client.FetchPages(ctx, 0)
	if err != nil {
		ds.fail(fmt.Sprintf("Could not fetch the thread listing: %v", err))
		return
	}

	snapshot := threads.Normalize(pages)
	ds.log(fmt.Sprintf(" - PASS: Listing has %d pages and %d threads.", len(pages), len(snapshot)))

	if ds.flags.Level > 1 {
		for id, t := range snapshot {
			ds.log(fmt.Sprintf(" - INFO: Sample thread %d with %d replies.", id, t.Replies))
			break
		}
	}
}

func (ds *DiagnosisSuite) testScorer() {
	ds.log(fmt.Sprintf("\n[5] Testing Toxicity Scorer (%s)", ds.cfg.Toxicity.Provider))
	if ds.cfg.Toxicity.Provider == "none" {
		ds.log(" - SKIP: No scorer configured.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ds.cfg.RequestTimeout())
	defer cancel()

	probs, err := texts.NewScorer(ds.cfg).Score(ctx, "have a nice day")
	if err != nil {
		ds.fail(fmt.Sprintf("Scoring a sample text failed: %v", err))
		return
	}
	ds.log(fmt.Sprintf(" - PASS: Sample text scored %.3f.", texts.Reduce(probs, ds.cfg.Toxicity.Weights)))
}

func (ds *DiagnosisSuite) saveReport() {
	outputFile := ds.flags.OutputFile
	if outputFile == "" {
		outputFile = fmt.Sprintf("diagnosis-report-%s.txt", time.Now().Format("2006-01-02_15-04-05"))
	}

	err := os.WriteFile(outputFile, []byte(ds.report.String()), 0644)
	if err != nil {
		fmt.Printf("\nCould not save report to %s: %v\n", outputFile, err)
	} else {
		fmt.Printf("\nDiagnosis report saved to %s\n", outputFile)
	}
}
