package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/opsgraph/knowledge-be/database"
	"github.com/opsgraph/knowledge-be/types"
	"github.com/opsgraph/knowledge-be/utils"
)

const (
	// Document source systems.
	SourceSystemUpload = "upload"
	SourceSystemURL    = "url"
	SourceSystemManual = "manual"

	defaultFetchTimeout = 20 * time.Second
)

var (
	// ErrInvalidEntity rejects a related-entity reference with an unknown
	// type or non-positive id.
	ErrInvalidEntity = errors.New("invalid related entity")
	// ErrEmptyContent rejects a text ingestion with nothing to index.
	ErrEmptyContent = errors.New("content must not be empty")
	// ErrEmptyURL rejects a URL ingestion without a target.
	ErrEmptyURL = errors.New("url must not be empty")
)

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	FetchTimeout time.Duration
}

// IngestService runs the ingestion pipeline: validate, extract, chunk, embed
// and persist, then index vectors on a best-effort basis. All side effects
// on the relational store happen in one transaction after extraction and
// embedding have already succeeded, so a configuration error leaves nothing
// behind.
type IngestService struct {
	store        database.KnowledgeStore
	vectors      *database.QdrantStore
	embedder     Embedder
	extractor    *ExtractService
	httpClient   *http.Client
	fetchTimeout time.Duration
}

func NewIngestService(store database.KnowledgeStore, vectors *database.QdrantStore, embedder Embedder, extractor *ExtractService, cfg IngestConfig) *IngestService {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &IngestService{
		store:        store,
		vectors:      vectors,
		embedder:     embedder,
		extractor:    extractor,
		httpClient:   &http.Client{Timeout: cfg.FetchTimeout},
		fetchTimeout: cfg.FetchTimeout,
	}
}

// IngestFile ingests a stored file. The file must already be saved under the
// upload directory; path, size and mime type describe it. A document whose
// content hash matches an earlier one is still ingested, but the result
// carries the earlier document id as a duplicate signal.
func (s *IngestService) IngestFile(ctx context.Context, path, mimeType string, size int64, meta types.IngestMetadata) (*types.IngestResult, error) {
	if !s.extractor.SupportedMime(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMime, mimeType)
	}
	if err := validateRelated(&meta.RelatedTo); err != nil {
		return nil, err
	}

	hash, err := utils.FileSHA256(path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash file: %w", err)
	}
	duplicate, err := s.store.DocumentByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	text, err := s.extractor.ExtractFile(ctx, path, mimeType)
	if err != nil {
		return nil, err
	}

	snippets, vectors, embedded, err := s.buildSnippets(ctx, text, meta)
	if err != nil {
		return nil, err
	}

	att := &types.Attachment{
		URI:       path,
		Kind:      "knowledge",
		MimeType:  mimeType,
		SizeBytes: size,
		SHA256:    hash,
	}
	applyEntity(att, meta.RelatedTo)
	doc := &types.Document{
		SourceSystem: SourceSystemUpload,
		Title:        meta.Title,
		MimeType:     mimeType,
		Summary:      docSummary(meta),
		Hash:         hash,
	}

	return s.persist(ctx, att, doc, snippets, vectors, embedded, meta, duplicate, len(text))
}

// IngestURL fetches a web page, strips it down to visible text and runs the
// same pipeline as a file upload, minus the attachment record. A fetch that
// exceeds the time budget degrades to the extraction-failed sentinel instead
// of aborting.
func (s *IngestService) IngestURL(ctx context.Context, req types.IngestURLRequest) (*types.IngestResult, error) {
	if req.URL == "" {
		return nil, ErrEmptyURL
	}
	if err := validateRelated(&req.Metadata.RelatedTo); err != nil {
		return nil, err
	}

	text, hash, err := s.fetchPage(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	meta := req.Metadata
	if meta.Title == "" {
		meta.Title = req.URL
	}
	duplicate, err := s.store.DocumentByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	snippets, vectors, embedded, err := s.buildSnippets(ctx, text, meta)
	if err != nil {
		return nil, err
	}

	doc := &types.Document{
		SourceSystem: SourceSystemURL,
		ExternalKey:  req.URL,
		Title:        meta.Title,
		MimeType:     "text/html",
		Summary:      docSummary(meta),
		Hash:         hash,
	}

	return s.persist(ctx, nil, doc, snippets, vectors, embedded, meta, duplicate, len(text))
}

// IngestText indexes one manually authored note as a standalone snippet,
// outside the document/attachment model.
func (s *IngestService) IngestText(ctx context.Context, req types.IngestTextRequest) (*types.IngestResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if req.RelatedTo != nil {
		if !types.ValidEntityType(req.RelatedTo.Type) || req.RelatedTo.ID <= 0 {
			return nil, fmt.Errorf("%w: %s/%d", ErrInvalidEntity, req.RelatedTo.Type, req.RelatedTo.ID)
		}
	}

	embedded, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}

	sn := &types.Snippet{
		SourceKind:     types.SourceManual,
		Label:          req.Label,
		Content:        content,
		Embedding:      types.EncodeVector(embedded.Vector),
		EmbeddingModel: embedded.Model,
		EmbeddingDim:   len(embedded.Vector),
	}
	if req.RelatedTo != nil {
		switch req.RelatedTo.Type {
		case types.EntityTicket:
			sn.SourceKind = types.SourceTicket
			sn.SourceID = req.RelatedTo.ID
		case types.EntityAsset:
			sn.SourceKind = types.SourceAsset
			sn.SourceID = req.RelatedTo.ID
		}
	}
	if err := s.store.CreateSnippet(ctx, sn); err != nil {
		return nil, err
	}

	indexed := s.indexVectors(ctx, []*types.Snippet{sn}, [][]float32{embedded.Vector}, nil, "")
	s.recordUsage(ctx, embedded, 1)

	return &types.IngestResult{
		SnippetIDs:     []int64{sn.ID},
		SnippetCount:   1,
		ExtractedChars: len(content),
		EmbeddingModel: embedded.Model,
		Provider:       embedded.Provider,
		VectorIndexed:  indexed,
	}, nil
}

// buildSnippets chunks text and embeds every chunk sequentially, one awaited
// call at a time, bounding burst load on the embedding provider. Empty text
// yields exactly one metadata snippet so the item stays searchable.
func (s *IngestService) buildSnippets(ctx context.Context, text string, meta types.IngestMetadata) ([]*types.Snippet, [][]float32, *types.EmbeddingResult, error) {
	chunks := s.extractor.Chunk(text)
	if len(chunks) == 0 {
		chunks = []string{MetadataSnippetContent(meta.Title, meta.Description)}
	}

	snippets := make([]*types.Snippet, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	var last *types.EmbeddingResult
	for i, chunk := range chunks {
		embedded, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to embed chunk %d/%d: %w", i+1, len(chunks), err)
		}
		label := meta.Title
		if len(chunks) > 1 {
			label = fmt.Sprintf("%s (part %d/%d)", meta.Title, i+1, len(chunks))
		}
		snippets = append(snippets, &types.Snippet{
			Label:          label,
			Content:        chunk,
			Embedding:      types.EncodeVector(embedded.Vector),
			EmbeddingModel: embedded.Model,
			EmbeddingDim:   len(embedded.Vector),
		})
		vectors = append(vectors, embedded.Vector)
		last = embedded
	}
	return snippets, vectors, last, nil
}

func (s *IngestService) persist(ctx context.Context, att *types.Attachment, doc *types.Document, snippets []*types.Snippet, vectors [][]float32, embedded *types.EmbeddingResult, meta types.IngestMetadata, duplicate *types.Document, extractedChars int) (*types.IngestResult, error) {
	var edges []types.RelationshipEdge
	if meta.RelatedTo.Type != "" {
		edges = append(edges, types.RelationshipEdge{
			EntityType: meta.RelatedTo.Type,
			EntityID:   meta.RelatedTo.ID,
		})
	}
	if err := s.store.SaveIngestion(ctx, att, doc, snippets, edges); err != nil {
		return nil, err
	}

	indexed := s.indexVectors(ctx, snippets, vectors, att, doc.MimeType)
	s.recordUsage(ctx, embedded, len(snippets))

	result := &types.IngestResult{
		DocumentID:     doc.ID,
		SnippetIDs:     snippetIDs(snippets),
		SnippetCount:   len(snippets),
		ExtractedChars: extractedChars,
		EmbeddingModel: embedded.Model,
		Provider:       embedded.Provider,
		Hash:           doc.Hash,
		VectorIndexed:  indexed,
	}
	if att != nil {
		result.AttachmentID = att.ID
	}
	if duplicate != nil {
		result.DuplicateOfDocID = duplicate.ID
	}
	return result, nil
}

// indexVectors mirrors freshly persisted snippets into the vector store.
// Failures are logged and swallowed: the vector store never fails ingestion.
func (s *IngestService) indexVectors(ctx context.Context, snippets []*types.Snippet, vectors [][]float32, att *types.Attachment, mimeType string) bool {
	if !s.vectors.Enabled() || len(snippets) == 0 {
		return false
	}

	ensure := s.vectors.EnsureCollection(ctx, len(vectors[0]))
	if !ensure.OK {
		log.Printf("vector store: ensure collection failed: %v", ensure.Err)
		return false
	}

	points := make([]types.VectorPoint, 0, len(snippets))
	for i, sn := range snippets {
		payload := types.VectorPayload{
			SnippetID:      sn.ID,
			MimeType:       mimeType,
			Label:          sn.Label,
			EmbeddingModel: sn.EmbeddingModel,
			CreatedAt:      sn.CreatedAt.UTC().Format(time.RFC3339),
		}
		if sn.SourceKind == types.SourceDocument {
			payload.DocumentID = sn.SourceID
		}
		if att != nil {
			payload.TicketID = att.TicketID
			payload.AssetID = att.AssetID
			payload.SiteID = att.SiteID
		}
		points = append(points, types.VectorPoint{ID: sn.ID, Vector: vectors[i], Payload: payload})
	}

	up := s.vectors.UpsertPoints(ctx, points)
	if !up.OK {
		log.Printf("vector store: upsert failed: %v", up.Err)
		return false
	}
	return true
}

func (s *IngestService) recordUsage(ctx context.Context, embedded *types.EmbeddingResult, count int) {
	u := &types.EmbeddingUsage{
		Model:       embedded.Model,
		Provider:    embedded.Provider,
		VectorCount: count,
	}
	if err := s.store.RecordEmbeddingUsage(ctx, u); err != nil {
		log.Printf("failed to record embedding usage: %v", err)
	}
}

// fetchPage downloads url and extracts its visible text. A deadline hit
// degrades to the extraction-failed sentinel; the hash then covers the
// sentinel so a retry after the site recovers is not treated as a duplicate.
func (s *IngestService) fetchPage(ctx context.Context, target string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", "", fmt.Errorf("invalid url: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ExtractionFailedContent, utils.BytesSHA256([]byte(ExtractionFailedContent)), nil
		}
		return "", "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxFileBytes))
	if err != nil {
		if ctx.Err() != nil {
			return ExtractionFailedContent, utils.BytesSHA256([]byte(ExtractionFailedContent)), nil
		}
		return "", "", fmt.Errorf("failed to read response body: %w", err)
	}

	text, err := ExtractHTML(strings.NewReader(string(body)))
	if err != nil {
		return "", "", err
	}
	return cleanText(text), utils.BytesSHA256(body), nil
}

func validateRelated(ref *types.EntityRef) error {
	if ref.Type == "" && ref.ID == 0 {
		return nil
	}
	if !types.ValidEntityType(ref.Type) || ref.ID <= 0 {
		return fmt.Errorf("%w: %s/%d", ErrInvalidEntity, ref.Type, ref.ID)
	}
	return nil
}

func applyEntity(att *types.Attachment, ref types.EntityRef) {
	if ref.Type == "" {
		return
	}
	id := ref.ID
	switch ref.Type {
	case types.EntityTicket:
		att.TicketID = &id
	case types.EntityAsset:
		att.AssetID = &id
	case types.EntityVendor:
		att.VendorID = &id
	case types.EntitySite:
		att.SiteID = &id
	}
}

func docSummary(meta types.IngestMetadata) string {
	parts := make([]string, 0, 3)
	if meta.Description != "" {
		parts = append(parts, meta.Description)
	}
	if meta.Category != "" {
		parts = append(parts, "category: "+meta.Category)
	}
	if len(meta.Tags) > 0 {
		parts = append(parts, "tags: "+strings.Join(meta.Tags, ", "))
	}
	return strings.Join(parts, " | ")
}

func snippetIDs(snippets []*types.Snippet) []int64 {
	ids := make([]int64, 0, len(snippets))
	for _, sn := range snippets {
		ids = append(ids, sn.ID)
	}
	return ids
}
