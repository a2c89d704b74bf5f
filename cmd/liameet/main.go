package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lialabs/liameet/internal/bus"
	"github.com/lialabs/liameet/internal/config"
	"github.com/lialabs/liameet/internal/daemon"
)

func main() {
	_ = rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "liameet",
	Short: "Meeting transcription and assistant daemon",
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		startCmd(),
		endCmd(),
		pauseCmd(),
		resumeCmd(),
		invokeCmd(),
		statusCmd(),
		transcriptCmd(),
		summaryCmd(),
		stopCmd(),
		versionCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load() // optional .env next to the binary

			manager, err := config.NewManager()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return daemon.New(manager).Run()
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start [title]",
		Short: "Start a meeting session",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdStart, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("failed to start session: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func endCmd() *cobra.Command {
	var noSummary bool

	cmd := &cobra.Command{
		Use:   "end",
		Short: "End the session and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if noSummary {
				arg = "no-summary"
			}
			resp, err := bus.SendCommand(bus.CmdEnd, arg)
			if err != nil {
				return fmt.Errorf("failed to end session: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSummary, "no-summary", false, "skip summary generation")
	return cmd
}

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause audio capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdPause, "")
			if err != nil {
				return fmt.Errorf("failed to pause: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume audio capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdResume, "")
			if err != nil {
				return fmt.Errorf("failed to resume: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func invokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invoke [prompt]",
		Short: "Ask Lia to respond in the meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdInvoke, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("failed to invoke assistant: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get the current session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdStatus, "")
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func transcriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcript",
		Short: "Print the live transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdTranscript, "")
			if err != nil {
				return fmt.Errorf("failed to get transcript: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary [kind]",
		Short: "Generate a summary of the transcript so far (general, actions or minutes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdSummary, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("failed to generate summary: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := bus.SendCommand(bus.CmdStop, "")
			if err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			fmt.Println(resp)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Get protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("proto=%s\n", bus.ProtoVer)
			return nil
		},
	}
}
