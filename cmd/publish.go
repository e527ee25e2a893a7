package cmd

import (
	"io"
	"log"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"

	"github.com/kevinsung/pudl/load/kafka"
)

// PublishMain is wrapped by NewPublishCommand and only exported for testing
// purposes.
var PublishMain *kafka.Main

// NewPublishCommand returns a new cobra command wrapping PublishMain.
func NewPublishCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	PublishMain = kafka.NewMain()
	publishCommand := &cobra.Command{
		Use:   "publish",
		Short: "stream tables from a processed SQLite database to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := PublishMain.Run(); err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	flags := publishCommand.Flags()
	if err := commandeer.Flags(flags, PublishMain); err != nil {
		panic(err)
	}
	return publishCommand
}

func init() {
	subcommandFns["publish"] = NewPublishCommand
}
