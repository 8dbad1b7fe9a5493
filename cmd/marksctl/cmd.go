package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/noah-isme/marksvault/internal/app"
	"github.com/noah-isme/marksvault/internal/service"
	"github.com/noah-isme/marksvault/pkg/config"
)

const (
	passphraseEnv    = "MARKS_PASSPHRASE"
	newPassphraseEnv = "MARKS_NEW_PASSPHRASE"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp  = errors.New("help provided")
	errDrift = errors.New("stored results differ from a fresh recompute")
)

type commandLine struct {
	cfg     *config.Config
	logger  *zap.Logger
	out     io.Writer
	stdinFd int
	newApp  func(*config.Config, *zap.Logger) (*app.App, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  import -type TYPE -year YYYY/YYYY [-vault PATH] FILE...  - import result, resit-may, resit-aug, award or modules sheets")
	fmt.Fprintln(cli.out, "  rekey [-vault PATH]                                      - change the vault passphrase")
	fmt.Fprintln(cli.out, "  export [-format csv|pdf] [-year YYYY/YYYY] [-out FILE]   - write the award report")
	fmt.Fprintln(cli.out, "  show -id STUDENT [-vault PATH]                           - print a student's record")
	fmt.Fprintln(cli.out, "  audit [-vault PATH]                                      - recompute everything without writing and report drift")
	fmt.Fprintf(cli.out, "The passphrase is read from %s or prompted for.\n", passphraseEnv)
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "import":
		return cli.importCmd(ctx, args[2:])
	case "rekey":
		return cli.rekeyCmd(ctx, args[2:])
	case "export":
		return cli.exportCmd(ctx, args[2:])
	case "show":
		return cli.showCmd(ctx, args[2:])
	case "audit":
		return cli.auditCmd(ctx, args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) flagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	vault := fs.String("vault", cli.cfg.Vault.Path, "Path to the sealed vault file")
	return fs, vault
}

func (cli *commandLine) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

// open builds the application against vault and unlocks it. Recomputes run inline.
func (cli *commandLine) open(ctx context.Context, vault string) (*app.App, error) {
	cfg := *cli.cfg
	cfg.Vault.Path = vault
	cfg.Recompute.Workers = 0
	a, err := cli.newApp(&cfg, cli.logger)
	if err != nil {
		return nil, err
	}
	passphrase, err := cli.passphrase(passphraseEnv, "Vault passphrase: ")
	if err != nil {
		return nil, err
	}
	if _, err := a.Sessions.Unlock(ctx, service.UnlockRequest{Passphrase: passphrase}); err != nil {
		return nil, err
	}
	return a, nil
}

func (cli *commandLine) close(a *app.App) {
	if err := a.Close(cli.cfg.ShutdownTimeout); err != nil {
		cli.logger.Error("failed to seal vault", zap.Error(err))
	}
}

func (cli *commandLine) passphrase(env, prompt string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(cli.stdinFd)
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if len(pwd) == 0 {
		return "", errors.New("passphrase is required")
	}
	return string(pwd), nil
}

func (cli *commandLine) importCmd(ctx context.Context, args []string) error {
	fs, vault := cli.flagSet("import")
	dataType := fs.String("type", "result", "Sheet type: result, resit-may, resit-aug, award or modules")
	year := fs.String("year", "", "Academic year of the upload, e.g. 2024/2025")
	if err := cli.parse(fs, args); err != nil {
		return err
	}
	if *year == "" || fs.NArg() == 0 {
		fs.Usage()
		return errHelp
	}

	a, err := cli.open(ctx, *vault)
	if err != nil {
		return err
	}
	defer cli.close(a)

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tACCEPTED\tREJECTED\tFAILED")
	var problems []string
	for _, path := range fs.Args() {
		report, err := a.Ingest.Insert(ctx, service.InsertRequest{DataType: *dataType, AcademicYear: *year, Path: path})
		if err != nil {
			_ = w.Flush()
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", filepath.Base(path), report.Accepted, len(report.Rejected), len(report.Failures))
		for _, d := range report.Rejected {
			problems = append(problems, fmt.Sprintf("%s: %s", filepath.Base(path), d.Reason))
		}
		for _, f := range report.Failures {
			problems = append(problems, fmt.Sprintf("%s: %s %s: %s", filepath.Base(path), f.StudentID, f.AcademicYear, f.Reason))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, p := range problems {
		fmt.Fprintln(cli.out, "  "+p)
	}
	return nil
}

func (cli *commandLine) rekeyCmd(ctx context.Context, args []string) error {
	fs, vault := cli.flagSet("rekey")
	if err := cli.parse(fs, args); err != nil {
		return err
	}

	current, err := cli.passphrase(passphraseEnv, "Current passphrase: ")
	if err != nil {
		return err
	}
	next, err := cli.passphrase(newPassphraseEnv, "New passphrase: ")
	if err != nil {
		return err
	}
	if os.Getenv(newPassphraseEnv) == "" {
		confirm, err := cli.passphrase(newPassphraseEnv, "Repeat new passphrase: ")
		if err != nil {
			return err
		}
		if confirm != next {
			return errors.New("passphrases do not match")
		}
	}

	cfg := *cli.cfg
	cfg.Vault.Path = *vault
	cfg.Recompute.Workers = 0
	a, err := cli.newApp(&cfg, cli.logger)
	if err != nil {
		return err
	}
	defer cli.close(a)
	if _, err := a.Sessions.Unlock(ctx, service.UnlockRequest{Passphrase: current}); err != nil {
		return err
	}
	if err := a.Sessions.ChangePassword(ctx, service.ChangePasswordRequest{Current: current, New: next}); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "vault rekeyed")
	return nil
}

func (cli *commandLine) exportCmd(ctx context.Context, args []string) error {
	fs, vault := cli.flagSet("export")
	format := fs.String("format", service.FormatCSV, "Report format: csv or pdf")
	year := fs.String("year", "", "Graduation academic year; empty exports every graduate")
	out := fs.String("out", "", "Output file; defaults to the generated name in the current directory, - for stdout")
	if err := cli.parse(fs, args); err != nil {
		return err
	}

	a, err := cli.open(ctx, *vault)
	if err != nil {
		return err
	}
	defer cli.close(a)

	file, err := a.Exports.Awards(ctx, *format, *year)
	if err != nil {
		return err
	}
	if *out == "-" {
		_, err := cli.out.Write(file.Data)
		return err
	}
	target := *out
	if target == "" {
		target = file.Filename
	}
	if err := os.WriteFile(target, file.Data, 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cli.out, "wrote %d students to %s\n", file.Rows, target)
	return nil
}

func (cli *commandLine) showCmd(ctx context.Context, args []string) error {
	fs, vault := cli.flagSet("show")
	id := fs.String("id", "", "Student ID")
	if err := cli.parse(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		fs.Usage()
		return errHelp
	}

	a, err := cli.open(ctx, *vault)
	if err != nil {
		return err
	}
	defer cli.close(a)

	student, err := a.Students.Get(ctx, *id)
	if err != nil {
		return err
	}
	marks, err := a.Students.Marks(ctx, *id)
	if err != nil {
		return err
	}
	results, err := a.Students.Results(ctx, *id)
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "%s  %s, %s\n", student.ID, student.LastName, student.FirstName)
	fmt.Fprintf(cli.out, "model %s  raw %s  final %s  award %s  borderline %t  review %t\n",
		orDash(student.CalcModel), orDash(fmtFloat(student.RawMark)), orDash(fmtInt(student.FinalMark)),
		orDash(student.DegreeAward), student.Borderline, student.ReviewRequired)
	if student.Selected {
		fmt.Fprintf(cli.out, "override: %s\n", orDash(student.ExceptionData))
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nYEAR\tMODULE\tMARK\tRETAKE1\tRETAKE2\tFINAL\tSTATUS")
	for _, m := range marks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", m.AcademicYear, m.ModuleCode,
			orDash(fmtFloat(&m.Mark)), orDash(fmtFloat(m.Retake1)), orDash(fmtFloat(m.Retake2)), orDash(fmtFloat(&m.FinalMark)), m.Status)
	}
	fmt.Fprintln(w, "\nYEAR\tSTUDY\tCREDITS\tMEAN\tFAILED\tPROGRESSION")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%d\t%s\n", r.AcademicYear, r.YearOfStudy, r.YearCredits, orDash(fmtFloat(r.YearMean)), r.FailedCredits, r.Progression)
	}
	return w.Flush()
}

func (cli *commandLine) auditCmd(ctx context.Context, args []string) error {
	fs, vault := cli.flagSet("audit")
	if err := cli.parse(fs, args); err != nil {
		return err
	}

	a, err := cli.open(ctx, *vault)
	if err != nil {
		return err
	}
	defer cli.close(a)

	report, err := a.Recompute.Audit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "audited %d units: %d differences, %d failures\n", report.Units, len(report.Diffs), len(report.Failures))
	if len(report.Diffs) > 0 {
		w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STUDENT\tYEAR\tMODULE\tFIELD\tSTORED\tRECOMPUTED")
		for _, d := range report.Diffs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", d.StudentID, orDash(ptr(string(d.AcademicYear))), orDash(ptr(d.ModuleCode)), d.Field, d.Stored, d.Recomputed)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	for _, f := range report.Failures {
		fmt.Fprintf(cli.out, "  %s %s: %s %s\n", f.StudentID, f.AcademicYear, f.Code, f.Reason)
	}
	if len(report.Diffs) > 0 {
		return errDrift
	}
	return nil
}
