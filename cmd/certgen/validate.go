// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"certforge/internal/layout"
)

func newValidateCmd() *cobra.Command {
	var templatePath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a template file for structural problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tpl, err := loadTemplate(templatePath, "", "")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			v := layout.Validate(tpl)
			if !v.Valid {
				for _, e := range v.Errors {
					fmt.Fprintln(out, "  -", e)
				}
				return v.Err()
			}

			fmt.Fprintf(out, "%s: valid, %d components\n", tpl.TemplateName, len(tpl.Components))
			if keys := placeholders(tpl); len(keys) > 0 {
				fmt.Fprintf(out, "placeholders: %v\n", keys)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "template file (.json, .yaml)")
	cmd.MarkFlagRequired("template")
	return cmd
}

// placeholders lists the distinct placeholder keys used by text and image
// components, sorted.
func placeholders(tpl *layout.Template) []string {
	var keys []string
	for _, c := range tpl.Components {
		for _, k := range layout.Placeholders(c.Content) {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)
	return keys
}
