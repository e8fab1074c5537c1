package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/imtti/internal/fallback"
	"github.com/marcus/imtti/internal/models"
	"github.com/marcus/imtti/internal/output"
)

// collectionSpec describes one record command group.
type collectionSpec struct {
	name      models.Collection
	singular  string
	aliases   []string
	canCreate bool
	example   string
}

var collectionSpecs = []collectionSpec{
	{
		name: models.CollectionCenters, singular: "center", aliases: []string{"center"}, canCreate: true,
		example: `  imtti centers list
  imtti centers create --set name="North Campus" --set email=north@example.com --set password=s3cret`,
	},
	{
		name: models.CollectionStudents, singular: "student", aliases: []string{"student"}, canCreate: true,
		example: `  imtti students create --set name=Ana --set registration_id=REG-7 --set date_of_birth=2004-02-29`,
	},
	{
		name: models.CollectionApplications, singular: "application", aliases: []string{"apps", "application"}, canCreate: true,
		example: `  imtti applications create --data '{"student_id": 1, "course": "B.Ed"}'`,
	},
	{
		name: models.CollectionMarks, singular: "mark", aliases: []string{"mark"}, canCreate: true,
		example: `  imtti marks create --set student_id=1 --set subject=Maths --set score=91`,
	},
	{
		name: models.CollectionAdmins, singular: "admin", aliases: []string{"admin"},
		example: `  imtti admins list --json`,
	},
}

func newCollectionCmd(spec collectionSpec) *cobra.Command {
	group := &cobra.Command{
		Use:     string(spec.name),
		Aliases: spec.aliases,
		Short:   fmt.Sprintf("List or create %s", spec.name),
		GroupID: "records",
		Example: spec.example,
	}
	if !spec.canCreate {
		group.Short = fmt.Sprintf("List %s", spec.name)
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   fmt.Sprintf("List %s", spec.name),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := a.context(cmd)
			defer cancel()

			res := a.client.Call(ctx, fallback.EndpointFor(spec.name), fallback.MethodRead, nil)
			warnIfLocal(res, "")
			return renderList(cmd, titleCase(string(spec.name)), res)
		},
	}
	group.AddCommand(list)

	if spec.canCreate {
		create := &cobra.Command{
			Use:   "create",
			Short: fmt.Sprintf("Create a %s", spec.singular),
			Long: fmt.Sprintf(`Create a %s from --set key=value pairs, a --data JSON object, or a --file.

Values given with --set are parsed as JSON when possible (numbers, true,
false, null, quoted strings) and taken as plain strings otherwise.

When the API is unreachable or rejects the record, nothing is saved and the
local %s are shown instead.`, spec.singular, spec.name),
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				rec, err := recordFromFlags(cmd)
				if err != nil {
					return err
				}

				a, err := newApp(cmd)
				if err != nil {
					return err
				}
				defer a.Close()

				ctx, cancel := a.context(cmd)
				defer cancel()

				res := a.client.Create(ctx, fallback.EndpointFor(spec.name), rec)
				return renderCreate(cmd, spec, res)
			},
		}
		create.Flags().StringArrayP("set", "s", nil, "field as key=value (repeatable)")
		create.Flags().String("data", "", "record as a JSON object")
		create.Flags().StringP("file", "f", "", "read the record as JSON from a file (- for stdin)")
		group.AddCommand(create)
	}

	return group
}

// renderCreate reports a create result.
func renderCreate(cmd *cobra.Command, spec collectionSpec, res fallback.Result) error {
	jsonOut, _ := outputMode(cmd.Flags())
	if res.Source == fallback.SourceLocal {
		warnIfLocal(res, fmt.Sprintf("the %s was not saved", spec.singular))
		if jsonOut {
			return output.JSON(map[string]any{"saved": false, "source": res.Source.String(), "local": res.Value})
		}
		return renderList(cmd, "Local "+string(spec.name), res)
	}

	rec, ok := res.Record()
	if jsonOut {
		return output.JSON(res.Value)
	}
	if !ok || rec.IDString() == "" {
		output.Warning("API answered without an id; the %s was not mirrored locally", spec.singular)
		return output.JSON(res.Value)
	}

	output.Success("Created %s %s", spec.singular, rec.IDString())
	output.Info("%s", output.FormatRecord(rec))
	if res.Err != nil {
		output.Warning("saved remotely but not mirrored locally: %v", res.Err)
	}
	return nil
}

// warnIfLocal explains why a result came from the local store.
func warnIfLocal(res fallback.Result, consequence string) {
	if res.Source != fallback.SourceLocal {
		return
	}
	prefix := ""
	if consequence != "" {
		prefix = consequence + "; "
	}
	if res.Err != nil {
		output.Warning("%sAPI request failed (%v), showing local data", prefix, res.Err)
		return
	}
	output.Warning("%sAPI unreachable, showing local data", prefix)
}

// renderList prints a listing result in the selected output mode.
func renderList(cmd *cobra.Command, title string, res fallback.Result) error {
	jsonOut, markdown := outputMode(cmd.Flags())
	if jsonOut {
		return output.JSON(res.Value)
	}

	records, ok := res.Records()
	if !ok {
		// not a list; show it as the API sent it
		return output.JSON(res.Value)
	}

	if markdown {
		rendered, err := output.RenderMarkdown(output.RecordsMarkdown(title, records))
		if err != nil {
			return err
		}
		output.Info("%s", rendered)
		return nil
	}

	output.Info("%s (%d) %s", strings.ToUpper(title), len(records), output.SourceBadge(res.Source.String()))
	output.Info("%s", output.FormatRecordsTable(records))
	return nil
}

// recordFromFlags assembles the record from --file, --data and --set, in
// that order; later sources override earlier keys.
func recordFromFlags(cmd *cobra.Command) (models.Record, error) {
	rec := models.Record{}

	if path, _ := cmd.Flags().GetString("file"); path != "" {
		var r io.Reader
		if path == "-" {
			r = cmd.InOrStdin()
		} else {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r = f
		}
		var fromFile models.Record
		if err := json.NewDecoder(r).Decode(&fromFile); err != nil || fromFile == nil {
			return nil, fmt.Errorf("--file: expected a JSON object")
		}
		for k, v := range fromFile {
			rec[k] = v
		}
	}

	if data, _ := cmd.Flags().GetString("data"); data != "" {
		var fromData models.Record
		if err := json.Unmarshal([]byte(data), &fromData); err != nil || fromData == nil {
			return nil, fmt.Errorf("--data: expected a JSON object")
		}
		for k, v := range fromData {
			rec[k] = v
		}
	}

	sets, _ := cmd.Flags().GetStringArray("set")
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--set %q: expected key=value", kv)
		}
		rec[key] = parseValue(value)
	}

	if len(rec) == 0 {
		return nil, fmt.Errorf("no fields given; use --set, --data or --file")
	}
	return rec, nil
}

// parseValue reads v as JSON when it is a scalar literal, else as a string.
func parseValue(v string) any {
	var parsed any
	if err := json.Unmarshal([]byte(v), &parsed); err == nil {
		switch parsed.(type) {
		case map[string]any, []any:
			return v
		}
		return parsed
	}
	return v
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func init() {
	for _, spec := range collectionSpecs {
		rootCmd.AddCommand(newCollectionCmd(spec))
	}
}
