package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/axonops/openapi-diagram/internal/api/types"
	"github.com/axonops/openapi-diagram/internal/openapi"
	"github.com/axonops/openapi-diagram/internal/registry"
	"github.com/axonops/openapi-diagram/internal/storage/memory"
)

// options holds the global flags.
type options struct {
	serverURL string
	output    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "diagramctl",
		Short:         "CLI for the OpenAPI diagram service",
		Long:          `A command-line tool for building class diagrams of OpenAPI documents, locally or through a diagram server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&opts.serverURL, "server", "s", getEnvOrDefault("DIAGRAM_SERVER", "http://localhost:8082"), "Diagram server URL")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json")

	rootCmd.AddCommand(
		newBuildCmd(opts),
		newWatchCmd(opts),
		newPublishCmd(opts),
		newDiagramCmd(opts),
		newPackagesCmd(opts),
		newVersionsCmd(opts),
		newVersionCmd(opts),
	)
	return rootCmd
}

// buildFlags are shared by build and watch.
type buildFlags struct {
	file     string
	scope    string
	subgraph bool
	noMerge  bool
	validate bool
}

func (f *buildFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "OpenAPI document, JSON or YAML (required)")
	cmd.Flags().StringVar(&f.scope, "scope", "", "JSON pointer restricting the build")
	cmd.Flags().BoolVar(&f.subgraph, "subgraph", false, "Only show classes reachable from the selected class")
	cmd.Flags().BoolVar(&f.noMerge, "no-merge-all-of", false, "Keep object-only allOf lists as combiners")
	cmd.Flags().BoolVar(&f.validate, "validate", false, "Compile every component schema before building")
	_ = cmd.MarkFlagRequired("file")
}

func (f *buildFlags) build(ctx context.Context) (types.DiagramResponse, error) {
	scope, err := registry.ParseScope(f.scope)
	if err != nil {
		return types.DiagramResponse{}, err
	}
	content, err := os.ReadFile(f.file)
	if err != nil {
		return types.DiagramResponse{}, fmt.Errorf("failed to read document: %w", err)
	}

	reg := registry.New(memory.NewStore(), registry.WithLoadOptions(openapi.LoadOptions{
		MergeAllOf: !f.noMerge,
		Validate:   f.validate,
	}))
	res, err := reg.BuildDiagram(ctx, content, scope)
	if err != nil {
		return types.DiagramResponse{}, err
	}
	return types.NewDiagramResponse(res, f.subgraph), nil
}

func newBuildCmd(opts *options) *cobra.Command {
	flags := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the diagram of a local document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := flags.build(cmd.Context())
			if err != nil {
				return err
			}
			return printDiagram(cmd.OutOrStdout(), opts.output, resp)
		},
	}
	flags.register(cmd)
	return cmd
}

func newPublishCmd(opts *options) *cobra.Command {
	var file, pkg, ver string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a document as a package version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}
			var doc types.DocumentResponse
			path := "/packages/" + url.PathEscape(pkg) + "/versions/" + url.PathEscape(ver)
			if err := newClient(opts.serverURL).do(cmd.Context(), "PUT", path, content, &doc); err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), doc)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s %s (fingerprint %s)\n", doc.Package, doc.Version, doc.Fingerprint)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "OpenAPI document (required)")
	cmd.Flags().StringVar(&pkg, "package", "", "Package name (required)")
	cmd.Flags().StringVar(&ver, "version", "", "Version (required)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("package")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func newDiagramCmd(opts *options) *cobra.Command {
	var scope string
	var subgraph bool
	cmd := &cobra.Command{
		Use:   "diagram <package> <version>",
		Short: "Fetch the diagram of a published version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if scope != "" {
				q.Set("scope", scope)
			}
			if subgraph {
				q.Set("subgraph", "true")
			}
			path := "/packages/" + url.PathEscape(args[0]) + "/versions/" + url.PathEscape(args[1]) + "/diagram"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var resp types.DiagramResponse
			if err := newClient(opts.serverURL).do(cmd.Context(), "GET", path, nil, &resp); err != nil {
				return err
			}
			return printDiagram(cmd.OutOrStdout(), opts.output, resp)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "JSON pointer restricting the build")
	cmd.Flags().BoolVar(&subgraph, "subgraph", false, "Only show classes reachable from the selected class")
	return cmd
}

func newPackagesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "List published packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var pkgs []types.PackageResponse
			if err := newClient(opts.serverURL).do(cmd.Context(), "GET", "/packages", nil, &pkgs); err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), pkgs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PACKAGE\tVERSIONS\tLATEST\tUPDATED")
			for _, p := range pkgs {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", p.Name, p.VersionCount, p.LatestVersion, formatTime(p.UpdatedAt))
			}
			return w.Flush()
		},
	}
}

func newVersionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <package>",
		Short: "List the versions of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var docs []types.DocumentResponse
			path := "/packages/" + url.PathEscape(args[0]) + "/versions"
			if err := newClient(opts.serverURL).do(cmd.Context(), "GET", path, nil, &docs); err != nil {
				return err
			}
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), docs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tTITLE\tOPENAPI\tFINGERPRINT\tCREATED")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Version, d.Title, d.OpenAPI, shortFingerprint(d.Fingerprint), formatTime(d.CreatedAt))
			}
			return w.Flush()
		},
	}
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output == "json" {
				return printJSON(cmd.OutOrStdout(), types.ServerVersionResponse{
					Version:   version,
					Commit:    commit,
					BuildTime: buildDate,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "diagramctl %s (commit: %s, built: %s)\n", version, commit, buildDate)
			return nil
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
