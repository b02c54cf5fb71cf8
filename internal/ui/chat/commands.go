// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/nisa-chat/internal/i18n"
	"github.com/jeranaias/nisa-chat/internal/model"
)

// CommandName identifies a slash command.
type CommandName string

const (
	CmdAttach     CommandName = "attach"
	CmdTranscribe CommandName = "transcribe"
	CmdModel      CommandName = "model"
	CmdNew        CommandName = "new"
	CmdList       CommandName = "list"
	CmdOpen       CommandName = "open"
	CmdDelete     CommandName = "delete"
	CmdHelp       CommandName = "help"
)

// Command is a parsed slash command.
type Command struct {
	Name CommandName
	Arg  string
}

type commandSpec struct {
	usage    i18n.Key
	help     i18n.Key
	needsArg bool
}

var commandSpecs = map[CommandName]commandSpec{
	CmdAttach:     {i18n.UsageAttach, i18n.HelpAttach, true},
	CmdTranscribe: {i18n.UsageTranscribe, i18n.HelpTranscribe, false},
	CmdModel:      {i18n.UsageModel, i18n.HelpModel, true},
	CmdNew:        {i18n.UsageNew, i18n.HelpNew, false},
	CmdList:       {i18n.UsageList, i18n.HelpList, false},
	CmdOpen:       {i18n.UsageOpen, i18n.HelpOpen, true},
	CmdDelete:     {i18n.UsageDelete, i18n.HelpDelete, true},
	CmdHelp:       {i18n.UsageHelp, i18n.HelpHelp, false},
}

var commandOrder = []CommandName{
	CmdAttach, CmdTranscribe, CmdModel, CmdNew, CmdList, CmdOpen, CmdDelete, CmdHelp,
}

// ErrNotCommand is returned for input that does not start with a slash.
var ErrNotCommand = errors.New("not a command")

// CommandError reports an unknown command or a missing argument. Usage is
// empty for an unknown command.
type CommandError struct {
	Name  string
	Usage i18n.Key
}

func (e *CommandError) Error() string {
	return e.Text(i18n.Default())
}

// Text renders the error in the printer's language.
func (e *CommandError) Text(p *i18n.Printer) string {
	if e.Usage == "" {
		return p.Text(i18n.UnknownCommand, e.Name)
	}
	return p.Text(i18n.CommandUsage, p.Text(e.Usage))
}

// ErrorText renders err for the user, localizing command errors.
func ErrorText(p *i18n.Printer, err error) string {
	var cerr *CommandError
	if errors.As(err, &cerr) {
		return cerr.Text(p)
	}
	return err.Error()
}

// ModelName is the localized label of a model choice.
func ModelName(p *i18n.Printer, c model.ModelChoice) string {
	if c == model.ModelAdvanced {
		return p.Text(i18n.ModelAdvancedName)
	}
	return p.Text(i18n.ModelFastName)
}

// RoleName is the localized label of a message author.
func RoleName(p *i18n.Printer, r model.Role) string {
	if r == model.RoleUser {
		return p.Text(i18n.RoleUserName)
	}
	return p.Text(i18n.RoleAssistantName)
}

// aliases maps short and Portuguese spellings to commands.
var aliases = map[string]CommandName{
	"a":           CmdAttach,
	"anexar":      CmdAttach,
	"t":           CmdTranscribe,
	"transcrever": CmdTranscribe,
	"m":           CmdModel,
	"modelo":      CmdModel,
	"n":           CmdNew,
	"nova":        CmdNew,
	"ls":          CmdList,
	"o":           CmdOpen,
	"abrir":       CmdOpen,
	"rm":          CmdDelete,
	"apagar":      CmdDelete,
	"h":           CmdHelp,
	"?":           CmdHelp,
	"ajuda":       CmdHelp,
}

// ParseCommand parses a slash command line. A leading "//" escapes a
// literal slash and is not a command.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || strings.HasPrefix(line, "//") {
		return Command{}, ErrNotCommand
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	cmd := CommandName(name)
	if alias, ok := aliases[name]; ok {
		cmd = alias
	}
	spec, ok := commandSpecs[cmd]
	if !ok {
		return Command{}, &CommandError{Name: name}
	}
	if spec.needsArg && arg == "" {
		return Command{}, &CommandError{Name: string(cmd), Usage: spec.usage}
	}
	return Command{Name: cmd, Arg: unquote(arg)}, nil
}

// unquote strips one pair of matching quotes, for pasted paths.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// HelpText lists the commands in the printer's language.
func HelpText(p *i18n.Printer) string {
	var b strings.Builder
	b.WriteString(p.Text(i18n.CommandsTitle) + "\n")
	for _, name := range commandOrder {
		spec := commandSpecs[name]
		fmt.Fprintf(&b, "  %-22s %s\n", p.Text(spec.usage), p.Text(spec.help))
	}
	return strings.TrimRight(b.String(), "\n")
}
