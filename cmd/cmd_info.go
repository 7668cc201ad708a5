// cmd_info.go - Info und Shape Commands
// Hauptfunktionen: InfoHandler, ShapeHandler
package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shubhanshu02/ffmpeg-1/dnn"
	"github.com/shubhanshu02/ffmpeg-1/format"
	"github.com/shubhanshu02/ffmpeg-1/fs/native"
)

// InfoHandler - Zeigt Layer und Operanden eines Modells an
func InfoHandler(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	g, err := native.Decode(f)
	if err != nil {
		return err
	}

	fmt.Printf("format version %d.%d, weights %s\n\n", g.Major, g.Minor, format.HumanBytes2(g.WeightBytes()))

	var layers [][]string
	for i := range g.Layers {
		l := &g.Layers[i]
		var inputs string
		for j, idx := range l.Inputs {
			if j > 0 {
				inputs += ","
			}
			inputs += g.Operands[idx].Name
		}
		layers = append(layers, []string{strconv.Itoa(i), l.Type.String(), inputs, g.Operands[l.Output].Name})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "TYPE", "INPUTS", "OUTPUT"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(layers)
	table.Render()

	fmt.Println()

	var operands [][]string
	for i := range g.Operands {
		o := &g.Operands[i]
		dims := fmt.Sprintf("%dx%dx%dx%d", o.Dims[0], o.Dims[1], o.Dims[2], o.Dims[3])
		operands = append(operands, []string{strconv.Itoa(i), o.Name, o.Kind.String(), dims})
	}

	table = tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "NAME", "KIND", "DIMS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(operands)
	table.Render()

	return nil
}

// ShapeHandler - Ermittelt die Ausgabegroesse fuer eine Eingabegroesse
func ShapeHandler(cmd *cobra.Command, args []string) error {
	width, err := cmd.Flags().GetInt("width")
	if err != nil {
		return err
	}
	height, err := cmd.Flags().GetInt("height")
	if err != nil {
		return err
	}

	model, err := dnn.LoadModel(args[0], dnn.Options{NumRequests: 1})
	if err != nil {
		return err
	}
	defer model.Close()

	input, output, err := pickOperands(cmd, model)
	if err != nil {
		return err
	}

	outWidth, outHeight, err := model.OutputShape(input, output, width, height)
	if err != nil {
		return err
	}
	fmt.Printf("%s %dx%d -> %s %dx%d\n", input, width, height, output, outWidth, outHeight)
	return nil
}

// pickOperands loest die input/output Flags auf, leere Flags nehmen
// den jeweils ersten Operanden des Modells
func pickOperands(cmd *cobra.Command, model *dnn.Model) (string, string, error) {
	input, err := cmd.Flags().GetString("input")
	if err != nil {
		return "", "", err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return "", "", err
	}

	g := model.Graph()
	if input == "" {
		if names := g.InputNames(); len(names) > 0 {
			input = names[0]
		}
	}
	if output == "" {
		if names := g.OutputNames(); len(names) > 0 {
			output = names[0]
		}
	}
	if input == "" || output == "" {
		return "", "", fmt.Errorf("model has no input or output operand")
	}
	return input, output, nil
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info MODEL",
		Short: "Show layers and operands of a model",
		Args:  cobra.ExactArgs(1),
		RunE:  InfoHandler,
	}
}

func newShapeCmd() *cobra.Command {
	shapeCmd := &cobra.Command{
		Use:   "shape MODEL",
		Short: "Probe the output size for an input size",
		Args:  cobra.ExactArgs(1),
		RunE:  ShapeHandler,
	}
	shapeCmd.Flags().Int("width", 0, "Input width in pixels")
	shapeCmd.Flags().Int("height", 0, "Input height in pixels")
	shapeCmd.Flags().String("input", "", "Name of the input operand")
	shapeCmd.Flags().String("output", "", "Name of the output operand")
	return shapeCmd
}
