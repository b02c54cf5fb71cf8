// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package i18n holds the user-visible texts of the chat client.
//
// Brazilian Portuguese is the default and matches what the archive backend
// speaks; English is available for operators. Texts are looked up through a
// golang.org/x/text message catalog keyed by stable identifiers.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a text in the catalog.
type Key string

const (
	ServerError       Key = "server-error"
	CommunicationFail Key = "communication-error"
	ParseFailure      Key = "parse-error"
	ConnectionClosed  Key = "connection-closed"
	AnswerUnavailable Key = "answer-unavailable"
	TranscribeFailed  Key = "transcribe-failed"
	PDFFailed         Key = "pdf-failed"
	UnsupportedFile   Key = "unsupported-file"
)

// Chat screen and REPL texts.
const (
	ModelFastName     Key = "model-fast"
	ModelAdvancedName Key = "model-advanced"
	RoleUserName      Key = "role-user"
	RoleAssistantName Key = "role-assistant"

	NoticeRequestCancelled Key = "notice-request-cancelled"
	NoticeModel            Key = "notice-model"
	NoticeBusy             Key = "notice-busy"
	NoticeNoConversations  Key = "notice-no-conversations"
	NoticeOpened           Key = "notice-opened"
	NoticeStorageDisabled  Key = "notice-storage-disabled"
	NoticeNewConversation  Key = "notice-new-conversation"
	NoticeDeleted          Key = "notice-deleted"
	NoticeUploadDisabled   Key = "notice-upload-disabled"
	NoticeJobRunning       Key = "notice-job-running"
	NoticeProcessing       Key = "notice-processing"
	NoticeAttached         Key = "notice-attached"
	NoticeTranscript       Key = "notice-transcript"
	NoticeJobCancelled     Key = "notice-job-cancelled"
	NoticeNoAttachment     Key = "notice-no-attachment"
	NoticeNotSaved         Key = "notice-not-saved"
	ConversationNumber     Key = "conversation-number"

	LabelLoading     Key = "label-loading"
	LabelKeywords    Key = "label-keywords"
	LabelTranscript  Key = "label-transcript"
	LabelLinks       Key = "label-links"
	LabelLinksCount  Key = "label-links-count"
	LabelLinksMore   Key = "label-links-more"
	LabelLinksToggle Key = "label-links-toggle"
	LabelSearching   Key = "label-searching"
	LabelProcessing  Key = "label-processing"
	LabelAttachment  Key = "label-attachment"
	LabelHelpHint    Key = "label-help-hint"
	LabelNotSaved    Key = "label-not-saved"
	LabelNarrowHelp  Key = "label-narrow-help"
	InputPlaceholder Key = "input-placeholder"

	KeySend          Key = "key-send"
	KeyModel         Key = "key-model"
	KeyNew           Key = "key-new"
	KeyConversations Key = "key-conversations"
	KeyLinks         Key = "key-links"
	KeyCancel        Key = "key-cancel"
	KeyQuit          Key = "key-quit"
	KeyScroll        Key = "key-scroll"

	CommandsTitle   Key = "commands-title"
	UnknownCommand  Key = "unknown-command"
	CommandUsage    Key = "command-usage"
	UsageAttach     Key = "usage-attach"
	UsageTranscribe Key = "usage-transcribe"
	UsageModel      Key = "usage-model"
	UsageNew        Key = "usage-new"
	UsageList       Key = "usage-list"
	UsageOpen       Key = "usage-open"
	UsageDelete     Key = "usage-delete"
	UsageHelp       Key = "usage-help"
	HelpAttach      Key = "help-attach"
	HelpTranscribe  Key = "help-transcribe"
	HelpModel       Key = "help-model"
	HelpNew         Key = "help-new"
	HelpList        Key = "help-list"
	HelpOpen        Key = "help-open"
	HelpDelete      Key = "help-delete"
	HelpHelp        Key = "help-help"
	HelpQuit        Key = "help-quit"
)

// DefaultLanguage is used when no language is configured.
var DefaultLanguage = language.BrazilianPortuguese

var texts = map[Key]map[language.Tag]string{
	ServerError: {
		language.BrazilianPortuguese: "Erro do servidor: %s",
		language.English:             "Server error: %s",
	},
	CommunicationFail: {
		language.BrazilianPortuguese: "Ocorreu um erro na comunicação com o servidor. Tente novamente.",
		language.English:             "Something went wrong talking to the server. Please try again.",
	},
	ParseFailure: {
		language.BrazilianPortuguese: "Erro ao processar a resposta final.",
		language.English:             "Could not process the final answer.",
	},
	ConnectionClosed: {
		language.BrazilianPortuguese: "A conexão com o servidor foi encerrada inesperadamente.",
		language.English:             "The connection to the server closed unexpectedly.",
	},
	AnswerUnavailable: {
		language.BrazilianPortuguese: "Resposta final indisponível.",
		language.English:             "Final answer unavailable.",
	},
	TranscribeFailed: {
		language.BrazilianPortuguese: "Erro na transcrição: %s",
		language.English:             "Transcription failed: %s",
	},
	PDFFailed: {
		language.BrazilianPortuguese: "Erro ao processar PDF: %s",
		language.English:             "Could not process PDF: %s",
	},
	UnsupportedFile: {
		language.BrazilianPortuguese: "Formato de arquivo não suportado: %s",
		language.English:             "Unsupported file format: %s",
	},

	ModelFastName:     {language.BrazilianPortuguese: "Rápido", language.English: "Fast"},
	ModelAdvancedName: {language.BrazilianPortuguese: "Avançado", language.English: "Advanced"},
	RoleUserName:      {language.BrazilianPortuguese: "Você", language.English: "You"},
	RoleAssistantName: {language.BrazilianPortuguese: "NISA", language.English: "NISA"},

	NoticeRequestCancelled: {language.BrazilianPortuguese: "Pedido cancelado.", language.English: "Request cancelled."},
	NoticeModel:            {language.BrazilianPortuguese: "Modelo: %s", language.English: "Model: %s"},
	NoticeBusy: {
		language.BrazilianPortuguese: "Aguarde a resposta atual ou pressione esc.",
		language.English:             "Wait for the current answer or press esc.",
	},
	NoticeNoConversations: {language.BrazilianPortuguese: "Nenhuma conversa salva.", language.English: "No saved conversations."},
	NoticeOpened:          {language.BrazilianPortuguese: "Conversa aberta: %s", language.English: "Opened conversation: %s"},
	NoticeStorageDisabled: {language.BrazilianPortuguese: "Armazenamento desativado.", language.English: "Storage is disabled."},
	NoticeNewConversation: {language.BrazilianPortuguese: "Nova conversa.", language.English: "New conversation."},
	NoticeDeleted:         {language.BrazilianPortuguese: "Conversa apagada.", language.English: "Conversation deleted."},
	NoticeUploadDisabled:  {language.BrazilianPortuguese: "Envio de arquivos indisponível.", language.English: "File upload is unavailable."},
	NoticeJobRunning:      {language.BrazilianPortuguese: "Já existe um arquivo em processamento.", language.English: "A file is already being processed."},
	NoticeProcessing:      {language.BrazilianPortuguese: "Processando %s (%s)...", language.English: "Processing %s (%s)..."},
	NoticeAttached: {
		language.BrazilianPortuguese: "Arquivo anexado: %s. Revise a pergunta e pressione enter.",
		language.English:             "Attached %s. Review the question and press enter.",
	},
	NoticeTranscript:   {language.BrazilianPortuguese: "Transcrição de %s:\n\n%s", language.English: "Transcript of %s:\n\n%s"},
	NoticeJobCancelled: {language.BrazilianPortuguese: "Processamento cancelado.", language.English: "Processing cancelled."},
	NoticeNoAttachment: {
		language.BrazilianPortuguese: "nenhum arquivo anexado (use /attach <arquivo>)",
		language.English:             "no file attached (use /attach <file>)",
	},
	NoticeNotSaved:     {language.BrazilianPortuguese: "conversa não salva: %s", language.English: "conversation not saved: %s"},
	ConversationNumber: {language.BrazilianPortuguese: "conversa %d", language.English: "conversation %d"},

	LabelLoading:     {language.BrazilianPortuguese: "Carregando...", language.English: "Loading..."},
	LabelKeywords:    {language.BrazilianPortuguese: "Palavras-chave: %s", language.English: "Keywords: %s"},
	LabelTranscript:  {language.BrazilianPortuguese: "Transcrição de %s", language.English: "Transcript of %s"},
	LabelLinks:       {language.BrazilianPortuguese: "Links sugeridos", language.English: "Suggested links"},
	LabelLinksCount:  {language.BrazilianPortuguese: "Links sugeridos (%d)", language.English: "Suggested links (%d)"},
	LabelLinksMore:   {language.BrazilianPortuguese: "... e mais %d", language.English: "... and %d more"},
	LabelLinksToggle: {language.BrazilianPortuguese: "%d links (C-l)", language.English: "%d links (C-l)"},
	LabelSearching:   {language.BrazilianPortuguese: "Pesquisando no acervo...", language.English: "Searching the archive..."},
	LabelProcessing:  {language.BrazilianPortuguese: "Processando %s...", language.English: "Processing %s..."},
	LabelAttachment:  {language.BrazilianPortuguese: "Anexo: %s", language.English: "Attachment: %s"},
	LabelHelpHint:    {language.BrazilianPortuguese: "/help para comandos", language.English: "/help for commands"},
	LabelNotSaved:    {language.BrazilianPortuguese: "não salvo", language.English: "not saved"},
	LabelNarrowHelp:  {language.BrazilianPortuguese: "C-c sair · /help", language.English: "C-c quit · /help"},
	InputPlaceholder: {language.BrazilianPortuguese: "Pergunte sobre o acervo...", language.English: "Ask about the archive..."},

	KeySend:          {language.BrazilianPortuguese: "enviar", language.English: "send"},
	KeyModel:         {language.BrazilianPortuguese: "modelo", language.English: "model"},
	KeyNew:           {language.BrazilianPortuguese: "nova", language.English: "new"},
	KeyConversations: {language.BrazilianPortuguese: "conversas", language.English: "conversations"},
	KeyLinks:         {language.BrazilianPortuguese: "links", language.English: "links"},
	KeyCancel:        {language.BrazilianPortuguese: "cancelar", language.English: "cancel"},
	KeyQuit:          {language.BrazilianPortuguese: "sair", language.English: "quit"},
	KeyScroll:        {language.BrazilianPortuguese: "rolar", language.English: "scroll"},

	CommandsTitle:   {language.BrazilianPortuguese: "Comandos:", language.English: "Commands:"},
	UnknownCommand:  {language.BrazilianPortuguese: "comando desconhecido: /%s (use /help)", language.English: "unknown command: /%s (use /help)"},
	CommandUsage:    {language.BrazilianPortuguese: "uso: %s", language.English: "usage: %s"},
	UsageAttach:     {language.BrazilianPortuguese: "/attach <arquivo>", language.English: "/attach <file>"},
	UsageTranscribe: {language.BrazilianPortuguese: "/transcribe [arquivo]", language.English: "/transcribe [file]"},
	UsageModel:      {language.BrazilianPortuguese: "/model fast|advanced", language.English: "/model fast|advanced"},
	UsageNew:        {language.BrazilianPortuguese: "/new", language.English: "/new"},
	UsageList:       {language.BrazilianPortuguese: "/list", language.English: "/list"},
	UsageOpen:       {language.BrazilianPortuguese: "/open <id|n>", language.English: "/open <id|n>"},
	UsageDelete:     {language.BrazilianPortuguese: "/delete <id|n>", language.English: "/delete <id|n>"},
	UsageHelp:       {language.BrazilianPortuguese: "/help", language.English: "/help"},
	HelpAttach:      {language.BrazilianPortuguese: "anexa PDF, áudio ou vídeo", language.English: "attach a PDF, audio or video file"},
	HelpTranscribe:  {language.BrazilianPortuguese: "mostra a transcrição", language.English: "show the transcript"},
	HelpModel:       {language.BrazilianPortuguese: "escolhe o modelo", language.English: "choose the model"},
	HelpNew:         {language.BrazilianPortuguese: "nova conversa", language.English: "new conversation"},
	HelpList:        {language.BrazilianPortuguese: "lista as conversas salvas", language.English: "list saved conversations"},
	HelpOpen:        {language.BrazilianPortuguese: "abre uma conversa", language.English: "open a conversation"},
	HelpDelete:      {language.BrazilianPortuguese: "apaga uma conversa", language.English: "delete a conversation"},
	HelpHelp:        {language.BrazilianPortuguese: "esta ajuda", language.English: "this help"},
	HelpQuit:        {language.BrazilianPortuguese: "sai", language.English: "quit"},
}

var (
	cat = buildCatalog()

	// The first entry is what unmatched languages fall back to.
	supported = []language.Tag{DefaultLanguage, language.English}
	matcher   = language.NewMatcher(supported)
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(DefaultLanguage))
	for key, byLang := range texts {
		for tag, text := range byLang {
			// Keys and texts are static; SetString only fails on bad input.
			if err := b.SetString(tag, string(key), text); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Printer renders catalog texts in one language.
type Printer struct {
	p *message.Printer
}

// NewPrinter returns a Printer for tag, falling back to pt-BR for
// unsupported languages.
func NewPrinter(tag language.Tag) *Printer {
	_, idx, _ := matcher.Match(tag)
	return &Printer{p: message.NewPrinter(supported[idx], message.Catalog(cat))}
}

// ParseLanguage resolves a config value such as "pt-BR" or "en". Empty or
// invalid values select DefaultLanguage.
func ParseLanguage(s string) language.Tag {
	if s == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(s)
	if err != nil {
		return DefaultLanguage
	}
	return tag
}

// Default returns a pt-BR printer.
func Default() *Printer {
	return NewPrinter(DefaultLanguage)
}

// Text renders key with optional arguments.
func (p *Printer) Text(key Key, args ...any) string {
	return p.p.Sprintf(string(key), args...)
}
