package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/registry"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

var citizenCmd = &cobra.Command{
	Use:   "citizen",
	Short: "Manage registered citizens",
}

var citizenAddCmd = &cobra.Command{
	Use:   "add <picture>",
	Short: "Register a citizen with a reference picture",
	Example: `  crimeapp citizen add --id "1234 5678 9012" --name "Ravi Kumar" \
      --address "Lanka, Varanasi" ravi.jpg
  crimeapp citizen add --id "2222 3333 4444" --name "Asha Devi" --kind missing asha.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runCitizenAdd,
}

var citizenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered citizens",
	Args:  cobra.NoArgs,
	RunE:  runCitizenList,
}

var citizenWantedCmd = &cobra.Command{
	Use:   "wanted <id>",
	Short: "Mark a citizen as Wanted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetStatus(cmd, args[0], storage.StatusWanted)
	},
}

var citizenFreeCmd = &cobra.Command{
	Use:   "free <id>",
	Short: "Mark a citizen as Free",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetStatus(cmd, args[0], storage.StatusFree)
	},
}

func init() {
	rootCmd.AddCommand(citizenCmd)
	citizenCmd.AddCommand(citizenAddCmd, citizenListCmd, citizenWantedCmd, citizenFreeCmd)

	citizenAddCmd.Flags().String("id", "", "Aadhar number (required)")
	citizenAddCmd.Flags().String("name", "", "Full name (required)")
	citizenAddCmd.Flags().String("address", "", "Address")
	citizenAddCmd.Flags().String("kind", "criminal", "Record kind (criminal, missing)")
	citizenAddCmd.Flags().Bool("wanted", false, "Mark the citizen as Wanted right away")
	_ = citizenAddCmd.MarkFlagRequired("id")
	_ = citizenAddCmd.MarkFlagRequired("name")

	citizenListCmd.Flags().String("status", "", "Only list citizens with this status (free, wanted, found)")
	citizenListCmd.Flags().String("kind", "", "Only list citizens of this kind (criminal, missing)")
}

func runCitizenAdd(cmd *cobra.Command, args []string) error {
	picture := args[0]
	f, err := os.Open(picture)
	if err != nil {
		return fmt.Errorf("failed to open picture: %w", err)
	}
	defer f.Close()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	reg := registry.Registration{
		NationalID: mustGetString(cmd, "id"),
		Name:       mustGetString(cmd, "name"),
		Address:    mustGetString(cmd, "address"),
		Kind:       mustGetString(cmd, "kind"),
		Filename:   filepath.Base(picture),
	}
	identity, err := a.registry.Register(cmd.Context(), reg, f)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "wanted") {
		identity, err = a.registry.SetWanted(cmd.Context(), identity.ID)
		if err != nil {
			return err
		}
	}

	fmt.Printf("Citizen %s (%s) registered as %s with status %s\n", identity.Name, identity.ID, identity.Kind, identity.Status)
	return nil
}

func runCitizenList(cmd *cobra.Command, args []string) error {
	var filter storage.Status
	if s := mustGetString(cmd, "status"); s != "" {
		st, err := storage.ParseStatus(s)
		if err != nil {
			return err
		}
		filter = st
	}
	var kind storage.Kind
	if s := mustGetString(cmd, "kind"); s != "" {
		k, err := storage.ParseKind(s)
		if err != nil {
			return err
		}
		kind = k
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	identities, err := a.registry.ListIdentities(cmd.Context(), kind)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tADDRESS\tKIND\tSTATUS\tREGISTERED")
	n := 0
	for _, id := range identities {
		if filter != "" && id.Status != filter {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", id.ID, id.Name, id.Address, id.Kind.OrDefault(), id.Status, id.CreatedAt.Local().Format("2006-01-02 15:04"))
		n++
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d citizen(s)\n", n)
	return nil
}

func runSetStatus(cmd *cobra.Command, id string, status storage.Status) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var identity *storage.Identity
	if status == storage.StatusWanted {
		identity, err = a.registry.SetWanted(cmd.Context(), id)
	} else {
		identity, err = a.registry.SetFree(cmd.Context(), id)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Status of %s (%s) is now %s\n", identity.Name, identity.ID, identity.Status)
	return nil
}
