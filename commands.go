package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"multimodalchat/core"
	"multimodalchat/factories"
	"multimodalchat/handlers/chat"
	"multimodalchat/handlers/render"
	ttshandler "multimodalchat/handlers/tts"
	"multimodalchat/server"
	redistranscript "multimodalchat/services/redis/transcript"
	"multimodalchat/utils/browser"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve generated assets, the viewer page and POST /api/chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Print a conversation mirrored to Redis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, args[0], cmd.OutOrStdout())
		},
	}
}

// session is the assistant stack shared by the terminal chat and the HTTP
// chat route.
type session struct {
	speech    *ttshandler.SpeechHandler
	assistant *chat.AssistantAgent
	cleanups  []func() error
}

func (s *session) Close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
}

// buildSession wires speech, the renderer, the assistant and its image
// capability. renderCfg must carry the port the file server bound. On error
// everything already initialized is cleaned up.
func buildSession(ctx context.Context, settings factories.SettingsConfig, renderCfg render.RenderConfig, logger *core.Logger) (s *session, err error) {
	s = &session{}
	defer func() {
		if err != nil {
			s.Close()
			s = nil
		}
	}()

	s.speech, err = settings.TTS.BuildHandler(logger)
	if err != nil {
		return s, err
	}
	if err = s.speech.Initialize(ctx); err != nil {
		return s, err
	}
	s.cleanups = append(s.cleanups, s.speech.Cleanup)

	renderer := render.NewRenderer(renderCfg, s.speech, browser.SystemOpener{}, logger)
	if err = renderer.Initialize(); err != nil {
		return s, err
	}

	s.assistant, err = settings.Assistant.BuildAgent(logger)
	if err != nil {
		return s, err
	}
	if err = s.assistant.Initialize(ctx); err != nil {
		return s, fmt.Errorf("assistant: %w (is OPENAI_API_KEY set?)", err)
	}
	s.cleanups = append(s.cleanups, s.assistant.Cleanup)

	images := factories.BuildImageService(settings.Image, logger)
	if initErr := images.Init(ctx); initErr != nil {
		logger.Warn("image generation disabled", "error", initErr)
	} else {
		s.cleanups = append(s.cleanups, images.Cleanup)
		if err = s.assistant.RegisterCapability("image_generation", chat.NewImageGeneration(images, logger)); err != nil {
			return s, err
		}
	}
	s.assistant.RegisterSendHook(chat.RenderHook(renderer))
	return s, nil
}

func runServe(ctx context.Context, opts *options) error {
	settings := loadSettings(opts)
	logger := core.GetLogger()

	srv := server.NewFileServer(settings.Server, logger)
	if err := srv.Listen(); err != nil {
		logger.Error("file server failed to start", "error", err)
		return err
	}

	// Web clients show the reply themselves.
	settings.OpenBrowser = false
	renderCfg := settings.RenderConfig(srv.Port())
	sess, err := buildSession(ctx, settings, renderCfg, logger)
	if err != nil {
		logger.Warn("chat endpoint disabled, serving files only", "error", err)
	} else {
		defer sess.Close()
		responder := chat.NewResponder(sess.assistant, settings.UserProxy.Name, logger)
		if transcript := openTranscript(ctx, settings.Transcript, responder.ID, logger); transcript != nil {
			defer transcript.Close()
			responder.WithTranscript(transcript)
		}
		srv.WithChat(responder)
	}

	if err := srv.Start(ctx); err != nil {
		logger.Error("file server failed to start", "error", err)
		return err
	}
	logger.Info("viewer available", "url", renderCfg.ViewerURL())

	<-ctx.Done()
	<-srv.Done()
	logger.Info("Shutting down...")
	return nil
}

func runChat(ctx context.Context, opts *options) error {
	settings := loadSettings(opts)
	logger := core.GetLogger()

	srv := server.NewFileServer(settings.Server, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Error("file server failed to start", "error", err)
		return err
	}

	sess, err := buildSession(ctx, settings, settings.RenderConfig(srv.Port()), logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	user := chat.NewUserProxyAgent(settings.UserProxy, os.Stdin, os.Stdout, logger)
	conversation := chat.NewConversation(user, sess.assistant, nil, logger)

	if transcript := openTranscript(ctx, settings.Transcript, conversation.ID, logger); transcript != nil {
		defer transcript.Close()
		conversation.WithTranscript(transcript)
	}

	return conversation.Initiate(ctx, chat.DefaultGreeting)
}

func runHistory(ctx context.Context, opts *options, conversationID string, out io.Writer) error {
	settings := loadSettings(opts)
	if settings.Transcript.Redis == nil {
		return errors.New("history: no Redis configured (set REDIS_ADDR or transcript.redis)")
	}

	reader, err := redistranscript.NewRedisTranscriptWriter(ctx, *settings.Transcript.Redis, conversationID, core.GetLogger())
	if err != nil {
		return err
	}
	defer reader.Close()

	entries, err := reader.Entries(ctx)
	if len(entries) == 0 && err == nil {
		return fmt.Errorf("history: nothing stored under %s", reader.Key())
	}
	printHistory(out, entries)
	return err
}

// printHistory writes one block per entry, oldest first.
func printHistory(out io.Writer, entries []core.TranscriptEntry) {
	for _, e := range entries {
		fmt.Fprintf(out, "%s %s (%s):\n%s\n", e.Timestamp, e.Sender, e.Role, e.Text)
		if e.Image != "" {
			fmt.Fprintf(out, "[image: %s]\n", e.Image)
		}
		if e.Audio != "" {
			fmt.Fprintf(out, "[audio: %s]\n", e.Audio)
		}
		fmt.Fprintln(out)
	}
}

// openTranscript opens the file transcript and, when configured, the Redis
// mirror. Either failing is logged and the chat runs without it.
func openTranscript(ctx context.Context, cfg factories.TranscriptConfig, conversationID string, logger *core.Logger) core.TranscriptWriter {
	if !cfg.Enabled {
		return nil
	}
	var writers core.MultiTranscriptWriter

	fileWriter, err := core.NewFileTranscriptWriter(cfg.Dir, conversationID)
	if err != nil {
		logger.Warn("transcript file disabled", "error", err)
	} else {
		logger.Info("recording transcript", "path", fileWriter.Path())
		writers = append(writers, fileWriter)
	}

	if cfg.Redis != nil {
		redisWriter, err := redistranscript.NewRedisTranscriptWriter(ctx, *cfg.Redis, conversationID, logger)
		if err != nil {
			logger.Warn("redis transcript mirror disabled", "error", err)
		} else {
			logger.Info("mirroring transcript to redis", "key", redisWriter.Key())
			writers = append(writers, redisWriter)
		}
	}

	if len(writers) == 0 {
		return nil
	}
	return writers
}
