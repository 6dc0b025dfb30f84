// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"certforge/internal/archive"
	"certforge/internal/generate"
	"certforge/internal/imagefetch"
	"certforge/internal/layout"
	"certforge/internal/pdf"
)

type generateOptions struct {
	templatePath string
	dataPath     string
	name         string
	event        string
	out          string
	batchSize    int
	compression  int
	qr           bool
	verifyURL    string
	offline      bool
	fetchTimeout time.Duration
}

func newGenerateCmd() *cobra.Command {
	var o generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render a certificate archive",
		Long: `generate renders one certificate per participant row and writes a zip
archive holding the PDFs, generation_summary.txt and, when rows failed,
generation_errors.txt. Failed rows never abort the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, &o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.templatePath, "template", "t", "", "template file (.json, .yaml)")
	f.StringVarP(&o.dataPath, "data", "d", "", "participant file (.csv, .xlsx, .xls)")
	f.StringVar(&o.name, "name", "", "template name printed in the summary (default: from the file)")
	f.StringVarP(&o.event, "event", "e", "", "event name printed in the summary")
	f.StringVarP(&o.out, "out", "o", "", "output zip path (default: <event>_<millis>.zip)")
	f.IntVar(&o.batchSize, "batch-size", archive.DefaultBatchSize, "rows rendered concurrently")
	f.IntVar(&o.compression, "compression", archive.DefaultCompressionLevel, "deflate level, 1-9")
	f.BoolVar(&o.qr, "qr", false, "stamp a verification QR code")
	f.StringVar(&o.verifyURL, "verify-url", "", "base URL encoded in the QR code")
	f.BoolVar(&o.offline, "offline", false, "do not download remote images")
	f.DurationVar(&o.fetchTimeout, "fetch-timeout", imagefetch.DefaultTimeout, "per image download timeout")
	cmd.MarkFlagRequired("template")
	cmd.MarkFlagRequired("data")
	cmd.MarkFlagRequired("event")
	return cmd
}

func runGenerate(cmd *cobra.Command, o *generateOptions) error {
	tpl, err := loadTemplate(o.templatePath, o.name, o.event)
	if err != nil {
		return err
	}
	if err := layout.Validate(tpl).Err(); err != nil {
		return err
	}
	records, err := readRecords(o.dataPath)
	if err != nil {
		return err
	}

	renderer := pdf.New(pdf.Options{QR: o.qr, VerifyBaseURL: o.verifyURL})
	if !o.offline {
		renderer = renderer.WithFetcher(imagefetch.NewMemo(imagefetch.New(imagefetch.Options{Timeout: o.fetchTimeout})))
	}

	stderr := cmd.ErrOrStderr()
	res, err := archive.New(renderer, archive.Options{
		BatchSize:        o.batchSize,
		CompressionLevel: o.compression,
		Progress: func(done, total int) {
			fmt.Fprintf(stderr, "\rrendered %d/%d", done, total)
			if done == total {
				fmt.Fprintln(stderr)
			}
		},
	}).Build(cmd.Context(), tpl, records)
	if err != nil {
		return err
	}

	out := o.out
	if out == "" {
		out = generate.ArchiveName(o.event, res.Generated)
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d certificates, %d errors, %d bytes\n",
		out, res.Succeeded, res.Total, len(res.Errors), len(res.Data))
	for _, e := range res.Errors {
		fmt.Fprintln(stderr, e.Error())
	}
	return nil
}
