// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/jeranaias/nisa-chat/internal/i18n"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"/attach relatorio.pdf", Command{Name: CmdAttach, Arg: "relatorio.pdf"}},
		{`/attach "meus docs/ata.pdf"`, Command{Name: CmdAttach, Arg: "meus docs/ata.pdf"}},
		{"/transcribe", Command{Name: CmdTranscribe}},
		{"  /MODEL advanced ", Command{Name: CmdModel, Arg: "advanced"}},
		{"/modelo rapido", Command{Name: CmdModel, Arg: "rapido"}},
		{"/new", Command{Name: CmdNew}},
		{"/ls", Command{Name: CmdList}},
		{"/open 2", Command{Name: CmdOpen, Arg: "2"}},
		{"/rm conv_1", Command{Name: CmdDelete, Arg: "conv_1"}},
		{"/?", Command{Name: CmdHelp}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	_, err := ParseCommand("fundos do século XIX")
	assert.ErrorIs(t, err, ErrNotCommand)

	_, err = ParseCommand("//etc/fstab")
	assert.ErrorIs(t, err, ErrNotCommand, "a double slash escapes the command prefix")

	_, err = ParseCommand("/frobnicate")
	assert.ErrorContains(t, err, "comando desconhecido")

	_, err = ParseCommand("/attach")
	assert.ErrorContains(t, err, "/attach <arquivo>")
}

func TestParseCommand_ErrorsInEnglish(t *testing.T) {
	en := i18n.NewPrinter(language.English)

	_, err := ParseCommand("/frobnicate")
	var cerr *CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "unknown command: /frobnicate (use /help)", ErrorText(en, err))

	_, err = ParseCommand("/attach")
	assert.Equal(t, "usage: /attach <file>", ErrorText(en, err))

	assert.Equal(t, "boom", ErrorText(en, errors.New("boom")))
}

func TestHelpText(t *testing.T) {
	p := i18n.Default()
	help := HelpText(p)
	assert.Contains(t, help, "Comandos:")
	for _, name := range commandOrder {
		assert.Contains(t, help, p.Text(commandSpecs[name].usage))
	}
}

func TestHelpText_English(t *testing.T) {
	help := HelpText(i18n.NewPrinter(language.English))
	assert.Contains(t, help, "Commands:")
	assert.Contains(t, help, "/attach <file>")
	assert.NotContains(t, help, "arquivo")
}
