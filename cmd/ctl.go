package cmd

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/medbot/rounds/api"
)

const schedulePath = "/api/medicalbot/schedule"

var (
	ctlServer string
	ctlToken  string
)

// apiClient calls the HTTP API of a running service.
type apiClient struct {
	http *resty.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &apiClient{http: c}
}

// call sends body to path and decodes the response envelope. Non-2xx
// responses are returned as errors carrying the envelope message.
func (c *apiClient) call(method, path string, body any, query map[string]string) (api.Envelope, error) {
	var env api.Envelope
	req := c.http.R().SetResult(&env).SetError(&env)
	if body != nil {
		req.SetBody(body)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return env, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return env, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode(), env.Message)
	}
	return env, nil
}

func (c *apiClient) Assign(patient, batch int64) (api.Envelope, error) {
	return c.call(http.MethodPost, schedulePath+"/schedule-slots/", map[string]int64{"patient": patient, "batch": batch}, nil)
}

func (c *apiClient) Check(patient, batch int64) (api.Envelope, error) {
	return c.call(http.MethodPost, schedulePath+"/check-scheduled-slot/", map[string]int64{"patient": patient, "batch": batch}, nil)
}

func (c *apiClient) Swap(a, b int64) (api.Envelope, error) {
	return c.call(http.MethodPost, schedulePath+"/swap/scheduled/slots/", map[string]int64{"pk1": a, "pk2": b}, nil)
}

func (c *apiClient) SwapOrder(batch int64, a, b int) (api.Envelope, error) {
	body := map[string]any{"batch_id": batch, "room_pos_a": a, "room_pos_b": b}
	return c.call(http.MethodPost, schedulePath+"/swap-room-order-scheduled-slot/", body, nil)
}

func (c *apiClient) Remove(slot int64) (api.Envelope, error) {
	return c.call(http.MethodDelete, schedulePath+"/remove/scheduled-slot/", map[string]int64{"slot_id": slot}, nil)
}

func (c *apiClient) Plans(query map[string]string) (api.Envelope, error) {
	return c.call(http.MethodGet, "/api/medicalbot/dispatch/logs/", nil, query)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, len(args))
	for i, a := range args {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("argument %d: %q is not a positive id", i+1, a)
		}
		ids[i] = n
	}
	return ids, nil
}

// idCommand builds a subcommand taking exactly n numeric ids.
func idCommand(use, short string, n int, do func(c *apiClient, ids []int64) (api.Envelope, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(n),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			env, err := do(newAPIClient(ctlServer, ctlToken), ids)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), env)
		},
	}
}

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Call the API of a running service",
}

func newPlanCmd() *cobra.Command {
	var batch int64
	var limit int
	var start, end string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "List published dispatch plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := map[string]string{}
			if batch > 0 {
				q["batch_id"] = strconv.FormatInt(batch, 10)
			}
			if limit > 0 {
				q["limit"] = strconv.Itoa(limit)
			}
			if start != "" {
				q["start"] = start
			}
			if end != "" {
				q["end"] = end
			}
			env, err := newAPIClient(ctlServer, ctlToken).Plans(q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), env)
		},
	}
	cmd.Flags().Int64Var(&batch, "batch", 0, "batch id")
	cmd.Flags().IntVar(&limit, "limit", 0, "keep only the latest n plans")
	cmd.Flags().StringVar(&start, "start", "", "window start, RFC3339")
	cmd.Flags().StringVar(&end, "end", "", "window end, RFC3339")
	return cmd
}

func init() {
	ctlCmd.PersistentFlags().StringVar(&ctlServer, "server", "http://localhost:8000", "API base URL")
	ctlCmd.PersistentFlags().StringVar(&ctlToken, "token", "", "bearer token for the plan log")

	ctlCmd.AddCommand(
		idCommand("assign <patient> <batch>", "Move a patient into a batch", 2,
			func(c *apiClient, ids []int64) (api.Envelope, error) { return c.Assign(ids[0], ids[1]) }),
		idCommand("check <patient> <batch>", "Assign a patient unless it sits in another batch", 2,
			func(c *apiClient, ids []int64) (api.Envelope, error) { return c.Check(ids[0], ids[1]) }),
		idCommand("swap <slot> <slot>", "Swap the patients of two scheduled slots", 2,
			func(c *apiClient, ids []int64) (api.Envelope, error) { return c.Swap(ids[0], ids[1]) }),
		idCommand("swap-order <batch> <order> <order>", "Swap two room positions of a batch", 3,
			func(c *apiClient, ids []int64) (api.Envelope, error) {
				return c.SwapOrder(ids[0], int(ids[1]), int(ids[2]))
			}),
		idCommand("remove <slot>", "Remove a scheduled slot", 1,
			func(c *apiClient, ids []int64) (api.Envelope, error) { return c.Remove(ids[0]) }),
		newPlanCmd(),
	)
	rootCmd.AddCommand(ctlCmd)
}
