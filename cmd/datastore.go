package cmd

import (
	"io"
	"log"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"

	"github.com/kevinsung/pudl/workspace"
)

// DatastoreMain is wrapped by NewDatastoreCommand and only exported for
// testing purposes.
var DatastoreMain *workspace.Main

// NewDatastoreCommand returns a new cobra command wrapping DatastoreMain.
func NewDatastoreCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	DatastoreMain = workspace.NewMain()
	datastoreCommand := &cobra.Command{
		Use:   "datastore",
		Short: "download and cache raw dataset archives from Zenodo",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := DatastoreMain.Run(); err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	flags := datastoreCommand.Flags()
	if err := commandeer.Flags(flags, DatastoreMain); err != nil {
		panic(err)
	}
	return datastoreCommand
}

func init() {
	subcommandFns["datastore"] = NewDatastoreCommand
}
