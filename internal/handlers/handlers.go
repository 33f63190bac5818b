package handlers

import (
	"rawgallery/internal/database"
	"rawgallery/internal/indexer"
	"rawgallery/internal/startup"
)

type Handlers struct {
	db       *database.Database
	indexer  *indexer.Indexer
	thumbDir string
}

func New(db *database.Database, idx *indexer.Indexer, config *startup.Config) *Handlers {
	return &Handlers{
		db:       db,
		indexer:  idx,
		thumbDir: config.ThumbnailDir,
	}
}
