package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tommy/internal/app"
	"github.com/roach88/tommy/internal/config"
	"github.com/roach88/tommy/internal/model"
)

// RecordsOptions holds flags for the records command.
type RecordsOptions struct {
	*PipelineOptions
	File string
}

// NewRecordsCommand creates the records command.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordsOptions{PipelineOptions: &PipelineOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List stored execution records",
		Long: `Print the execution records of a destination tree.

Example:
  tommy records --dst ./public
  tommy records --dst ./public --file img/logo.png --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecords(cmd, opts)
		},
	}
	addPipelineFlags(cmd, opts.PipelineOptions)
	cmd.Flags().StringVar(&opts.File, "file", "", "only records of this source-relative file")
	return cmd
}

func runRecords(cmd *cobra.Command, opts *RecordsOptions) error {
	layer, err := opts.resolve()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags or environment", err)
	}
	dst, err := existingDir(opts.Dst)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot start", err)
	}
	cfg, err := config.Resolve(opts.ConfigPath, layer)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot start", model.NewConfigError(err))
	}

	st, err := app.OpenStore(cfg.Store, dst)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot open store", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	var recs []model.Record
	if opts.File != "" {
		recs, err = st.GetAllByFile(ctx, opts.File)
	} else {
		recs, err = st.GetAll(ctx)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "cannot read records", err)
	}
	return opts.formatter(cmd).Success(recordList(recs))
}

func existingDir(p string) (string, error) {
	if p == "" {
		return "", model.NewPreconditionError("destination directory is not set", nil)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", model.NewPreconditionError(fmt.Sprintf("destination directory <%s> is unusable", p), err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", model.NewPreconditionError(fmt.Sprintf("destination directory <%s> is unusable", p), err)
	}
	if !info.IsDir() {
		return "", model.NewPreconditionError(fmt.Sprintf("destination <%s> is not a directory", p), nil)
	}
	return abs, nil
}

// recordView is the printed form of a record.
type recordView struct {
	InputFile   string   `json:"input_file"`
	TaskKey     string   `json:"task_key"`
	InputHash   string   `json:"input_hash"`
	RunAt       string   `json:"run_at"`
	OutputFiles []string `json:"output_files"`
	AlgoVersion string   `json:"algo_version"`
	TaskConfig  string   `json:"task_config"`
}

type recordList []model.Record

func (l recordList) MarshalJSON() ([]byte, error) {
	views := make([]recordView, len(l))
	for i, r := range l {
		views[i] = recordView{
			InputFile:   r.InputFile,
			TaskKey:     string(r.TaskKey),
			InputHash:   r.InputHash,
			RunAt:       r.RunAt.UTC().Format(time.RFC3339),
			OutputFiles: append([]string{}, r.OutputFiles...),
			AlgoVersion: r.AlgoVersion,
			TaskConfig:  r.TaskConfig,
		}
	}
	return json.Marshal(views)
}

func (l recordList) Text() string {
	if len(l) == 0 {
		return "No records\n"
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INPUT\tTASK\tVERSION\tRUN AT\tOUTPUTS")
	for _, r := range l {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.InputFile, r.TaskKey, r.AlgoVersion,
			r.RunAt.UTC().Format(time.RFC3339), strings.Join(r.OutputFiles, ","))
	}
	_ = w.Flush()
	return b.String()
}
