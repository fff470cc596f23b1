package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/portraitforge/portraitforge/internal/appid"
	"github.com/portraitforge/portraitforge/internal/output"
	"github.com/portraitforge/portraitforge/internal/server/handlers"
)

var (
	admissionServer string
	admissionToken  string
	admissionYes    bool
	admissionOutput string
)

var admissionHTTPClient = &http.Client{Timeout: 10 * time.Second}

var admissionCmd = &cobra.Command{
	Use:   "admission",
	Short: "Inspect or reset a running server's admission windows",
	Long: `Admission windows live in the serve process. These commands talk to a
running server over HTTP; the reset command needs the server admin token.`,
}

var admissionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-minute and per-day admission occupancy",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := admissionRequest(cmd.Context(), http.MethodGet, "/v1/admission", "")
		if err != nil {
			return err
		}
		return renderAdmission(cmd.OutOrStdout(), resp)
	},
}

var admissionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear both admission windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !admissionYes {
			return fmt.Errorf("reset clears admission windows for every client; rerun with --yes")
		}
		token := strings.TrimSpace(admissionToken)
		if token == "" {
			token = strings.TrimSpace(viper.GetString("server.admin_token"))
		}
		if token == "" {
			return fmt.Errorf("admin token required (--token or %s)", appid.EnvVar(cmd.Context(), "ADMIN_TOKEN"))
		}
		resp, err := admissionRequest(cmd.Context(), http.MethodPost, "/admin/admission/reset", token)
		if err != nil {
			return err
		}
		return renderAdmission(cmd.OutOrStdout(), resp)
	},
}

func admissionRequest(ctx context.Context, method, path, token string) (*handlers.AdmissionResponse, error) {
	base := strings.TrimRight(strings.TrimSpace(admissionServer), "/")
	if base == "" {
		base = fmt.Sprintf("http://%s:%d", viper.GetString("server.host"), viper.GetInt("server.port"))
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := admissionHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact server: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
			return nil, fmt.Errorf("server returned %d %s: %s", resp.StatusCode, envelope.Error.Code, envelope.Error.Message)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var snapshot handlers.AdmissionResponse
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("decode admission response: %w", err)
	}
	return &snapshot, nil
}

func renderAdmission(w io.Writer, snapshot *handlers.AdmissionResponse) error {
	format, err := output.ParseFormat(admissionOutput)
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(snapshot)
	}

	lines := []string{
		"Admission",
		"",
		fmt.Sprintf("minute: %d/%s", snapshot.MinuteCount, limitLabel(snapshot.PerMinute)),
		fmt.Sprintf("day:    %d/%s", snapshot.DayCount, limitLabel(snapshot.PerDay)),
		"wait:   " + snapshot.EstimatedWaitHuman,
	}
	_, err = fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}

func limitLabel(limit int) string {
	if limit <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", limit)
}

func init() {
	rootCmd.AddCommand(admissionCmd)
	admissionCmd.AddCommand(admissionStatusCmd)
	admissionCmd.AddCommand(admissionResetCmd)

	admissionCmd.PersistentFlags().StringVar(&admissionServer, "server", "", "server base URL (default from server.host and server.port)")
	admissionCmd.PersistentFlags().StringVar(&admissionOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	admissionResetCmd.Flags().StringVar(&admissionToken, "token", "", "admin bearer token (default from server.admin_token)")
	admissionResetCmd.Flags().BoolVar(&admissionYes, "yes", false, "confirm the reset")
}
