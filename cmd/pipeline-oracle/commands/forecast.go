package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pipeline-oracle/internal/api"
	"pipeline-oracle/internal/capacity"
	"pipeline-oracle/internal/oracle"
	"pipeline-oracle/internal/visuals"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	requestPath string
	htmlPath    string
	openReport  bool
	withExplain bool
	topN        int
	legacyV1    bool
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast the fill date of one requisition",
	Long: `Reads a forecast request document (see "schema"), runs the pipeline-only and
capacity-aware simulations and prints the forecast as JSON. With --html or --open an
explain report with charts is written as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := readRequest(requestPath)
		if err != nil {
			return err
		}

		f, err := orc.Forecast(req)
		if err != nil {
			return err
		}

		out := map[string]any{"forecast": api.ViewOf(f, topN)}
		if withExplain {
			out["explain"] = f.Explain
		}
		if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}

		if htmlPath == "" && openReport {
			htmlPath = filepath.Join(cfg.ReportDir, fmt.Sprintf("%s-forecast.html", req.ReqID))
		}
		if htmlPath == "" {
			return nil
		}
		if err := visuals.NewReport(f, orc.Catalog().Order()).WriteHTML(htmlPath); err != nil {
			return err
		}
		log.Info().Str("path", htmlPath).Msg("Forecast report written")

		if openReport {
			return browser.OpenFile(htmlPath)
		}
		return nil
	},
}

var penaltyCmd = &cobra.Command{
	Use:   "penalty",
	Short: "Compute the capacity penalty of a requisition without simulating",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := readRequest(requestPath)
		if err != nil {
			return err
		}

		var res capacity.PenaltyResult
		if legacyV1 {
			res, err = orc.PenaltyV1(req)
		} else {
			res, err = orc.Penalty(req)
		}
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

// readRequest loads a request document from a file, or stdin when path is "-".
func readRequest(path string) (oracle.Request, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return oracle.Request{}, fmt.Errorf("failed to read request: %w", err)
	}

	doc, err := api.DecodeForecastRequest(data)
	if err != nil {
		return oracle.Request{}, err
	}
	return doc.ToOracle()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	forecastCmd.Flags().StringVarP(&requestPath, "request", "r", "-", "forecast request JSON file (- for stdin)")
	forecastCmd.Flags().StringVar(&htmlPath, "html", "", "write an HTML explain report to this path")
	forecastCmd.Flags().BoolVar(&openReport, "open", false, "open the HTML report in the browser")
	forecastCmd.Flags().BoolVar(&withExplain, "explain", false, "include the explain bundle in the output")
	forecastCmd.Flags().IntVar(&topN, "top", api.DefaultTopRecommendations, "number of recommendations to print")

	penaltyCmd.Flags().StringVarP(&requestPath, "request", "r", "-", "forecast request JSON file (- for stdin)")
	penaltyCmd.Flags().BoolVar(&legacyV1, "v1", false, "use the legacy requisition-only penalty")

	rootCmd.AddCommand(forecastCmd, penaltyCmd)
}
