package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"remnantsync/internal/parsing"
)

func init() {
	parseCmd.Flags().String("title", "", "Job page title to extract material and name from")
	rootCmd.AddCommand(parseCmd)
}

var parseCmd = &cobra.Command{
	Use:   "parse <description>...",
	Short: "Shows how files table descriptions parse into remnant records.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		renderParse(cmd.OutOrStdout(), title, args)
		return nil
	},
}

func renderParse(out io.Writer, title string, descriptions []string) {
	if title != "" {
		material, name := parsing.ExtractMaterialAndName(title)
		fmt.Fprintf(out, "material: %s\nname: %s\n", parsing.DefaultUnknown(material), parsing.DefaultUnknown(name))
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"Description", "ID", "Size", "L-Shape", "Status", "Thickness", "Error"})
	for _, d := range descriptions {
		rem, err := parsing.ParseDescription(d)
		if err != nil {
			t.AppendRow(table.Row{d, "", "", "", "", "", err.Error()})
			continue
		}
		lshape := ""
		if rem.LShaped {
			lshape = fmt.Sprintf("%dx%d", *rem.SubWidth, *rem.SubHeight)
		}
		t.AppendRow(table.Row{
			d, rem.ID, fmt.Sprintf("%dx%d", rem.Width, rem.Height), lshape, rem.Status, rem.Thickness, "",
		})
	}
	t.Render()
}
