package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/justestif/discat/internal/collection"
	"github.com/justestif/discat/internal/discogs"
)

var (
	fieldType    string
	fieldOptions []string
	fieldPublic  bool
	fieldLines   int
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Manage custom collection fields",
}

var fieldsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List custom fields, with dropdown options",
	Args:  cobra.NoArgs,
	RunE:  runFieldsList,
}

var fieldsCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a custom field",
	Long: `Create a custom field.

Examples:
  discat fields create Decade
  discat fields create Format --type dropdown --option Vinyl --option CD --option Other
`,
	Args: cobra.ExactArgs(1),
	RunE: runFieldsCreate,
}

var fieldsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a custom field and every value stored in it",
	Args:  cobra.ExactArgs(1),
	RunE:  runFieldsDelete,
}

var fieldsReorderCmd = &cobra.Command{
	Use:   "reorder ID...",
	Short: "Set the display order of custom fields",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFieldsReorder,
}

func init() {
	fieldsCreateCmd.Flags().StringVar(&fieldType, "type", string(collection.FieldText), "Field type: text, textarea or dropdown")
	fieldsCreateCmd.Flags().StringArrayVar(&fieldOptions, "option", nil, "Dropdown option (repeatable)")
	fieldsCreateCmd.Flags().BoolVar(&fieldPublic, "public", false, "Show the field on the public collection")
	fieldsCreateCmd.Flags().IntVar(&fieldLines, "lines", 0, "Visible lines of a textarea field")

	fieldsCmd.AddCommand(fieldsListCmd, fieldsCreateCmd, fieldsDeleteCmd, fieldsReorderCmd)
	rootCmd.AddCommand(fieldsCmd)
}

func runFieldsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	fields, err := a.client.Fields(cmd.Context())
	if err != nil {
		return err
	}
	printFields(cmd, fields)
	return nil
}

func printFields(cmd *cobra.Command, fields []collection.Field) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tPOSITION\tOPTIONS")
	for _, f := range fields {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", f.ID, f.Name, f.Type, f.Position, strings.Join(f.Options, ", "))
	}
	_ = tw.Flush()
}

func runFieldsCreate(cmd *cobra.Command, args []string) error {
	spec := discogs.FieldSpec{
		Name:    args[0],
		Type:    collection.FieldType(fieldType),
		Options: fieldOptions,
		Public:  fieldPublic,
		Lines:   fieldLines,
	}
	switch spec.Type {
	case collection.FieldText, collection.FieldTextarea:
		if len(spec.Options) > 0 {
			return fmt.Errorf("--option only applies to dropdown fields")
		}
	case collection.FieldDropdown:
		if len(spec.Options) == 0 {
			return fmt.Errorf("a dropdown field needs at least one --option")
		}
	default:
		return fmt.Errorf("unknown field type %q", fieldType)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	field, err := a.client.CreateField(cmd.Context(), spec)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created field %q (id %d).\n", field.Name, field.ID)
	return nil
}

func runFieldsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid field id %q", args[0])
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.client.DeleteField(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted field %d.\n", id)
	return nil
}

func runFieldsReorder(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.client.ReorderFields(cmd.Context(), ids); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reordered %d fields.\n", len(ids))
	return nil
}

// parseIDs parses field ids, rejecting duplicates.
func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	seen := make(map[int]bool, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid field id %q", arg)
		}
		if seen[id] {
			return nil, fmt.Errorf("field id %d listed twice", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
