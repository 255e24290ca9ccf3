package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/polyferno/polyferno/src/config"
	"github.com/polyferno/polyferno/src/service"
	"github.com/spf13/cobra"
)

var (
	serviceAddr = config.DefaultServiceAddr
	submitRound uint64
)

// NewSubmitCmd returns the command that posts a model file to a running node
func NewSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit [FILE]",
		Short: "Submit a model to a running node",
		Args:  cobra.ExactArgs(1),
		RunE:  submit,
	}

	cmd.Flags().StringVar(&serviceAddr, "service", serviceAddr, "IP:Port of the node's HTTP service")
	cmd.Flags().Uint64Var(&submitRound, "round", submitRound, "Round of the model")

	return cmd
}

func submit(cmd *cobra.Command, args []string) error {
	model, err := ioutil.ReadFile(args[0])
	if err != nil {
		return err
	}

	res, err := postModel(serviceAddr, submitRound, model)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Submitted %d bytes for round %d\n", res.Size, res.Round)

	return nil
}

func postModel(addr string, round uint64, model []byte) (*service.SubmitResult, error) {
	url := fmt.Sprintf("http://%s/model?round=%d", addr, round)

	resp, err := http.Post(url, "application/octet-stream", bytes.NewReader(model))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := ioutil.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(body))
	}

	res := &service.SubmitResult{}
	if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
		return nil, err
	}

	return res, nil
}
