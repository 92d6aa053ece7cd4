// Package integration exercises the offline pipeline: statement import, knowledge base
// build with the deterministic embedder, and retrieval, against real storage.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vittmoney/vitt/internal/answer"
	"github.com/vittmoney/vitt/internal/builder"
	"github.com/vittmoney/vitt/internal/config"
	"github.com/vittmoney/vitt/internal/embedding"
	"github.com/vittmoney/vitt/internal/expense"
	"github.com/vittmoney/vitt/internal/importer"
	"github.com/vittmoney/vitt/internal/knowledge"
	"github.com/vittmoney/vitt/internal/storage"
	"github.com/vittmoney/vitt/internal/verdict"
)

const statement = `date,amount,description,category,merchant
2025-01-01,120,Morning coffee,Food,Brew Bar
2025-01-02,2400,Monthly rail pass,Transport,City Rail
2025-01-03,899,Headphones,Shopping,Gadget Hub
2025-01-04,350,Dinner,Food,Spice Route
`

func TestIntegration_OfflinePipeline(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			ctx := context.Background()
			cfg := config.StorageConfig{
				DatabasePath:     filepath.Join(dir, "vitt.db"),
				KnowledgeDir:     filepath.Join(dir, "knowledge"),
				KnowledgeBackend: backend,
			}

			db, err := storage.Open(cfg.DatabasePath)
			if err != nil {
				t.Fatal(err)
			}
			defer db.Close()
			expenses, err := expense.NewSQLiteStore(db)
			if err != nil {
				t.Fatal(err)
			}
			store, err := knowledge.New(cfg, db)
			if err != nil {
				t.Fatal(err)
			}
			ledger, err := importer.NewLedger(db)
			if err != nil {
				t.Fatal(err)
			}

			path := filepath.Join(dir, "jan.csv")
			if err := os.WriteFile(path, []byte(statement), 0600); err != nil {
				t.Fatal(err)
			}
			res, err := importer.New(expenses, ledger).ImportFile(ctx, "u1", path)
			if err != nil {
				t.Fatal(err)
			}
			if res.Imported != 4 {
				t.Fatalf("imported %d rows, want 4", res.Imported)
			}

			emb := embedding.NewMockEmbedder(64)
			b := builder.New(expenses, emb, store)
			kb, err := b.Build(ctx, "u1")
			if err != nil {
				t.Fatal(err)
			}
			if kb.Len() != 4 {
				t.Fatalf("built %d facts, want 4", kb.Len())
			}

			svc := verdict.NewService(store, b, emb, answer.NewGenerator(nil))
			// Asking with a fact's exact text retrieves that fact first.
			for _, f := range kb.Facts {
				resp, err := svc.Answer(ctx, "u1", f)
				if err != nil {
					t.Fatal(err)
				}
				if resp.FactsUsed[0] != f {
					t.Errorf("first fact for %q = %q", f, resp.FactsUsed[0])
				}
				if resp.Verdict != answer.LocalSummary(resp.FactsUsed) {
					t.Errorf("expected local summary without providers, got %q", resp.Verdict)
				}
			}
		})
	}
}
