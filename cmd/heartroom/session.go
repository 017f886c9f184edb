package main

import (
	"context"
	"errors"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/heartroom/internal/clipboard"
	"github.com/1ureka/heartroom/internal/config"
	"github.com/1ureka/heartroom/internal/feed"
	"github.com/1ureka/heartroom/internal/peer"
	"github.com/1ureka/heartroom/internal/room"
	"github.com/1ureka/heartroom/internal/store"
	"github.com/1ureka/heartroom/internal/util"
)

// session wires one room to its collaborators for the life of the process.
type session struct {
	cfg    *config.Config
	room   *room.Room
	loc    *room.Location
	copier *clipboard.Copier
	feed   *feed.Server
	term   *terminal

	cancel context.CancelFunc
}

func newSession(parent context.Context) (*session, error) {
	cfg, err := config.Load(options())
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		util.EnableDebug()
	}

	ctx, cancel := context.WithCancel(parent)
	s := &session{
		cfg:    cfg,
		loc:    room.NewLocation(cfg.LinkBase),
		copier: clipboard.New(),
		term:   newTerminal(),
		cancel: cancel,
	}

	observers := &room.Observers{}
	observers.Add(s.term)

	dialer := peer.NewDialer(peer.Config{
		ICEServers:     cfg.ICEServers,
		GatherTimeout:  cfg.GatherTimeout,
		SampleInterval: cfg.SampleInterval,
	})
	s.room = room.New(room.Options{
		Dialer:       room.NewPeerDialer(dialer),
		Names:        store.NewFileStore(cfg.NameFile),
		Observer:     observers,
		LinkBase:     cfg.LinkBase,
		HandshakeTTL: cfg.HandshakeTTL,
		DisplayName:  cfg.DisplayName,
	})

	if cfg.FeedAddr != "" {
		s.feed = feed.NewServer(s.room, s.loc)
		url, err := s.feed.Start(ctx, cfg.FeedAddr)
		if err != nil {
			cancel()
			return nil, err
		}
		observers.Add(s.feed)
		util.LogInfo("Local feed listening on %s", url)
	}

	util.StartStatsReporter(ctx, cfg.StatsInterval)
	util.LogDebug("ice servers: %v, link base: %s", cfg.ICEServers, cfg.LinkBase)
	return s, nil
}

func (s *session) close() {
	s.room.Reset()
	if s.feed != nil {
		s.feed.Close()
	}
	s.cancel()
}

// ---------------------------------------------------------------------------
// Actions
// ---------------------------------------------------------------------------

// invite creates an invite and hands the link to the user.
func (s *session) invite(ctx context.Context) error {
	spinner, _ := pterm.DefaultSpinner.Start("Gathering network candidates...")
	link, err := s.room.CreateInvite(ctx)
	spinner.Stop()
	if err != nil {
		return err
	}
	s.share("Invite link", link)
	return nil
}

// join processes an invite link and hands the response link to the user.
func (s *session) join(ctx context.Context, input string) error {
	spinner, _ := pterm.DefaultSpinner.Start("Preparing response link...")
	link, err := s.room.JoinFromOffer(ctx, input)
	spinner.Stop()
	if err != nil {
		return err
	}
	s.share("Response link", link)
	return nil
}

// paste handles any link the user pastes, the way opening it in the tab
// would: an offer joins, an answer is applied when hosting. A bare token is
// read as an answer while hosting and as an invite otherwise.
func (s *session) paste(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return errors.New("nothing pasted")
	}

	if _, fragment, ok := strings.Cut(input, "#"); ok {
		s.loc.Navigate(s.cfg.LinkBase + "#" + fragment)
		out, err := s.room.ProcessLocation(ctx, s.loc)
		if err != nil || out.Kind != "" {
			if out.Link != "" {
				s.share("Response link", out.Link)
			}
			return err
		}
	}

	if s.room.Role() == room.RoleHost {
		return s.room.ApplyAnswer(ctx, input)
	}
	return s.join(ctx, input)
}

func (s *session) share(title, link string) {
	pterm.Println()
	if s.copier.Copy(link) {
		pterm.Success.Printfln("%s copied to clipboard.", title)
	} else {
		pterm.Warning.Printfln("%s could not be copied automatically. Copy it manually:", title)
	}
	pterm.DefaultBox.WithTitle(title).Println(link)
	pterm.Println()
}
