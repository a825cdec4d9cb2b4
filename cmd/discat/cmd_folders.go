package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "Manage collection folders",
}

var foldersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders with item counts",
	Args:  cobra.NoArgs,
	RunE:  runFoldersList,
}

var foldersCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runFoldersCreate,
}

var foldersRenameCmd = &cobra.Command{
	Use:   "rename ID NAME",
	Short: "Rename a folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runFoldersRename,
}

var foldersDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an empty folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runFoldersDelete,
}

func init() {
	foldersCmd.AddCommand(foldersListCmd, foldersCreateCmd, foldersRenameCmd, foldersDeleteCmd)
	rootCmd.AddCommand(foldersCmd)
}

func runFoldersList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	folders, err := a.client.Folders(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tITEMS")
	for _, f := range folders {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", f.ID, f.Name, f.Count)
	}
	return tw.Flush()
}

func runFoldersCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	folder, err := a.client.CreateFolder(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created folder %q (id %d).\n", folder.Name, folder.ID)
	return nil
}

func runFoldersRename(cmd *cobra.Command, args []string) error {
	id, err := parseFolderID(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	folder, err := a.client.RenameFolder(cmd.Context(), id, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed folder %d to %q.\n", folder.ID, folder.Name)
	return nil
}

func runFoldersDelete(cmd *cobra.Command, args []string) error {
	id, err := parseFolderID(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.client.DeleteFolder(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted folder %d.\n", id)
	return nil
}

// parseFolderID rejects the built-in folders, which cannot be changed.
func parseFolderID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid folder id %q", arg)
	}
	if id <= 1 {
		return 0, fmt.Errorf("folder %d is built in and cannot be changed", id)
	}
	return id, nil
}
