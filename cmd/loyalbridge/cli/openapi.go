package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/loyalbridge/admin/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long:  `Generate the OpenAPI 3.1 document describing the /api/auth and /api/admins endpoints.`,
		Example: `  loyalbridge openapi                       # print to stdout
  loyalbridge openapi -o openapi.json       # write to file
  loyalbridge openapi --base-url https://admin.loyalbridge.io`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFile == "" {
				return runOpenAPI(cmd.OutOrStdout(), baseURL)
			}
			f, err := os.Create(outputFile)
			if err != nil {
				return err
			}
			if err := runOpenAPI(f, baseURL); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL advertised in the document")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}

func runOpenAPI(out io.Writer, baseURL string) error {
	doc := openapi.GenerateAuthSpec(baseURL)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
