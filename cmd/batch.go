package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/nameplate-cli/internal/decoder"
	"github.com/sells-group/nameplate-cli/internal/fetcher"
	"github.com/sells-group/nameplate-cli/internal/normalize"
	"github.com/sells-group/nameplate-cli/internal/store"
)

var (
	batchRuleset string
	batchInput   string
	batchOutput  string
	batchAttrOut string
	batchNoStore bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Decode an asset export (CSV or XLSX)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := loadDecodeEnv(batchRuleset)
		if err != nil {
			return err
		}

		assets, err := fetcher.ReadRecords(batchInput)
		if err != nil {
			return err
		}
		zap.L().Info("processing batch",
			zap.String("input", batchInput),
			zap.Int("assets", len(assets)),
			zap.Int("workers", cfg.Batch.Workers),
		)

		decodeRows, attrRows, tallies := processBatch(ctx, env, assets, cfg.Batch.Workers)

		if err := fetcher.WriteCSV(batchOutput, batchDecodeHeader, decodeRows); err != nil {
			return err
		}
		attrOut := batchAttrOut
		if attrOut == "" {
			attrOut = strings.TrimSuffix(batchOutput, ".csv") + ".attributes.csv"
		}
		if err := fetcher.WriteCSV(attrOut, batchAttrHeader, attrRows); err != nil {
			return err
		}

		if !batchNoStore {
			if err := recordBatchRun(ctx, env.Dir, len(assets), tallies); err != nil {
				// History is an audit convenience. The decode outputs exist.
				zap.L().Warn("failed to record run history", zap.Error(err))
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), batchOutput)
		fmt.Fprintln(cmd.OutOrStdout(), attrOut)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchRuleset, "ruleset", "", "ruleset directory (default CURRENT)")
	batchCmd.Flags().StringVar(&batchInput, "input", "", "asset export file (.csv or .xlsx)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "decoded.csv", "decode output CSV")
	batchCmd.Flags().StringVar(&batchAttrOut, "attr-output", "", "attribute long-form output CSV (default <output>.attributes.csv)")
	batchCmd.Flags().BoolVar(&batchNoStore, "no-store", false, "skip recording the run in the history store")
	batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

var batchDecodeHeader = []string{
	"AssetID", "MakeRaw", "Brand", "SerialNumber", "ModelNumber", "EquipmentType",
	"Matched", "StyleName", "Year", "Month", "Week", "AmbiguousDecade", "Confidence", "Notes",
}

var batchAttrHeader = []string{
	"AssetID", "Brand", "ModelNumber", "AttributeName", "Value", "Units", "Confidence",
}

func recField(rec map[string]string, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(rec[n]); v != "" {
			return v
		}
	}
	return ""
}

func intCell(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// processBatch decodes every asset concurrently and returns decode rows,
// attribute rows, and outcome tallies, all in input order.
func processBatch(ctx context.Context, env *decodeEnv, assets []map[string]string, workers int) (decodeRows, attrRows []map[string]string, tallies map[string]int) {
	type result struct {
		decodeRow map[string]string
		attrRows  []map[string]string
		matched   bool
		conf      string
	}
	results := make([]result, len(assets))

	g, _ := errgroup.WithContext(ctx)
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, a := range assets {
		g.Go(func() error {
			assetID := recField(a, "AssetID", "equipmentId")
			makeRaw := recField(a, "Make", "manufacturerId", "Manufacturer")
			serial := recField(a, "SerialNumber", "serialNumber", "Serial")
			model := recField(a, "ModelNumber", "modelNumber", "Model")
			brand := normalize.Brand(makeRaw, env.Set.Aliases)
			equipType := decoder.CanonicalEquipmentType(
				recField(a, "EquipmentType", "Asset_Description", "Type"), env.Vocab)

			sr := env.Serial.Decode(brand, serial, env.bounds())
			attrs := env.Attrs.Decode(brand, model, equipType)

			r := result{
				decodeRow: map[string]string{
					"AssetID":         assetID,
					"MakeRaw":         makeRaw,
					"Brand":           brand,
					"SerialNumber":    serial,
					"ModelNumber":     model,
					"EquipmentType":   equipType,
					"Matched":         strconv.FormatBool(sr.Matched),
					"StyleName":       sr.MatchedStyleName,
					"Year":            intCell(sr.Year),
					"Month":           intCell(sr.Month),
					"Week":            intCell(sr.Week),
					"AmbiguousDecade": strconv.FormatBool(sr.AmbiguousDecade),
					"Confidence":      string(sr.Confidence),
					"Notes":           sr.Notes,
				},
				matched: sr.Matched,
				conf:    string(sr.Confidence),
			}
			for _, attr := range attrs {
				r.attrRows = append(r.attrRows, map[string]string{
					"AssetID":       assetID,
					"Brand":         brand,
					"ModelNumber":   model,
					"AttributeName": attr.AttributeName,
					"Value":         fmt.Sprintf("%v", attr.Value),
					"Units":         attr.Units,
					"Confidence":    string(attr.Confidence),
				})
			}
			results[i] = r
			return nil
		})
	}
	// Workers never return errors; per-asset failures surface as unmatched rows.
	_ = g.Wait()

	tallies = make(map[string]int)
	for _, r := range results {
		decodeRows = append(decodeRows, r.decodeRow)
		attrRows = append(attrRows, r.attrRows...)
		if r.matched {
			tallies["matched"]++
			if r.conf != "" {
				tallies[strings.ToLower(r.conf)]++
			}
		} else {
			tallies["unmatched"]++
		}
	}
	return decodeRows, attrRows, tallies
}

func recordBatchRun(ctx context.Context, rulesetDir string, rows int, tallies map[string]int) error {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	run := &store.Run{
		Kind:       store.RunKindDecode,
		RulesetDir: rulesetDir,
		InputPath:  batchInput,
		Rows:       rows,
		Decoded:    tallies["matched"],
		Tallies:    tallies,
	}
	if err := st.RecordRun(ctx, run); err != nil {
		return eris.Wrap(err, "record batch run")
	}
	zap.L().Info("recorded run", zap.String("run_id", run.ID))
	return nil
}
