package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbtai-dev/dbtai/internal/chat"
	"github.com/dbtai-dev/dbtai/internal/config"
	"github.com/dbtai-dev/dbtai/internal/fileutil"
	"github.com/dbtai-dev/dbtai/internal/history"
	"github.com/dbtai-dev/dbtai/internal/llm"
	"github.com/dbtai-dev/dbtai/internal/prompt"
)

// chatInput is a package-level var to allow test injection.
var chatInput = func() io.Reader { return os.Stdin }

func RunChat(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])

	p, err := loadProject(cmd)
	if err != nil {
		return err
	}
	_, code, err := p.sourceOf(name)
	if err != nil {
		return err
	}
	fields, err := p.modelFields(name, code)
	if err != nil {
		return err
	}
	messages, err := prompt.Render(prompt.TaskChatSystemPrompt, p.language(), fields)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	client, err := newClient(ctx, p.cfg, p.logger)
	if err != nil {
		return err
	}
	defer client.Close()

	// History is optional; chat still works when the store cannot be opened.
	var saver chat.Saver
	if store, err := openHistory(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: chat history disabled: %v\n", err)
	} else {
		defer store.Close()
		saver = store
	}

	session := chat.NewSession(name, messages[0].Content, client, saver)
	return session.Run(ctx, chatInput(), os.Stdout)
}

func openHistory() (*history.Store, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return history.Open(dir)
}

func RunHistory(cmd *cobra.Command, args []string) error {
	model := ""
	if len(args) > 0 {
		model = strings.TrimSpace(args[0])
	}
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}

	store, err := openHistory()
	if err != nil {
		return fmt.Errorf("failed to open chat history: %w", err)
	}
	defer store.Close()

	transcripts, err := store.List(commandContext(cmd), model)
	if err != nil {
		return err
	}
	if asJSON {
		if transcripts == nil {
			transcripts = []history.Transcript{}
		}
		return fileutil.PrintJSON(transcripts)
	}

	if len(transcripts) == 0 {
		fmt.Println("No saved chats.")
		return nil
	}
	for i, t := range transcripts {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("#%d %s (%s)\n", t.ID, t.Model, t.SavedAt.Local().Format("2006-01-02 15:04:05"))
		for _, msg := range t.Messages {
			if msg.Role == llm.RoleSystem {
				continue
			}
			fmt.Printf("%s: %s\n", msg.Role, msg.Content)
		}
	}
	return nil
}
