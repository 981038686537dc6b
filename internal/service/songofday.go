package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"telegram-community-bot/internal/model"
	"telegram-community-bot/internal/pkg/songlink"
	"telegram-community-bot/internal/repository"
)

// Errors for catalog operations.
var (
	ErrDuplicateSong   = errors.New("song already waiting in the catalog")
	ErrSongNotResolved = errors.New("could not resolve the song link")
	ErrCatalogEmpty    = errors.New("no unfeatured songs in the catalog")
)

// SongService manages the community song catalog and the daily feature
// pick. Track URLs from any platform are resolved through the
// cross-platform link service before they enter the catalog.
type SongService struct {
	catalog  *repository.CatalogRepository
	songlink *songlink.Client
}

// NewSongService creates a new SongService instance.
func NewSongService(catalog *repository.CatalogRepository, sl *songlink.Client) *SongService {
	return &SongService{catalog: catalog, songlink: sl}
}

// Add resolves a track URL and stores it in the catalog under the
// contributor. A track with the same title and artist already waiting
// to be featured is rejected; featured tracks may be re-added.
func (s *SongService) Add(ctx context.Context, contributorID int64, trackURL string) (*model.CatalogEntry, error) {
	song, err := s.songlink.Lookup(ctx, trackURL)
	if err != nil {
		log.Warn().Err(err).Str("url", trackURL).Msg("Song lookup failed")
		return nil, ErrSongNotResolved
	}

	exists, err := s.catalog.HasUnusedByTitleArtist(ctx, song.Title, song.Artist)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateSong
	}

	entry, err := s.catalog.Add(ctx, contributorID, song.Title, song.Artist, song.ArtworkURL, trackURL)
	if err != nil {
		return nil, fmt.Errorf("failed to add song: %w", err)
	}
	return entry, nil
}

// FeaturedSong is a picked catalog entry plus best-effort platform
// links for the daily post.
type FeaturedSong struct {
	Entry      *model.CatalogEntry
	PageURL    string
	AppleMusic string
	YouTube    string
	Spotify    string
}

// PickDaily selects today's feature with the two-stage random pick and
// marks it used before returning. Link enrichment is best-effort; a
// failed lookup still yields the pick with only its source URL.
func (s *SongService) PickDaily(ctx context.Context) (*FeaturedSong, error) {
	entry, err := s.catalog.PickRandomUnused(ctx)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrCatalogEmpty
	}

	if err := s.catalog.MarkUsed(ctx, entry.ID); err != nil {
		return nil, err
	}

	featured := &FeaturedSong{Entry: entry}
	song, err := s.songlink.Lookup(ctx, entry.SourceURL)
	if err != nil {
		log.Warn().Err(err).Int64("entry_id", entry.ID).Msg("Link enrichment failed, posting bare")
		return featured, nil
	}

	featured.PageURL = song.PageURL
	featured.AppleMusic = song.AppleMusic
	featured.YouTube = song.YouTube
	featured.Spotify = song.Spotify
	return featured, nil
}
