// cmd_run.go - Run Command Handler
// Hauptfunktionen: RunHandler - Bild durch ein Modell schicken
package cmd

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/spf13/cobra"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/shubhanshu02/ffmpeg-1/dnn"
)

// RunHandler - Laedt Modell und Bild, fuehrt die Inferenz aus und
// schreibt das Ergebnis als PNG
func RunHandler(cmd *cobra.Command, args []string) error {
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	async, err := cmd.Flags().GetBool("async")
	if err != nil {
		return err
	}

	model, err := dnn.LoadModel(args[0], dnn.Options{})
	if err != nil {
		return err
	}
	defer model.Close()

	input, output, err := pickOperands(cmd, model)
	if err != nil {
		return err
	}

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decoding %s: %w", args[1], err)
	}

	dims, err := model.InputShape(input)
	if err != nil {
		return err
	}
	inFrame, err := dnn.FrameFromImage(img, int(dims[3]))
	if err != nil {
		return err
	}

	outFrame := &dnn.Frame{}
	start := time.Now()
	if _, err := model.Execute(&dnn.ExecParams{
		InputName:   input,
		OutputNames: []string{output},
		Input:       inFrame,
		Output:      outFrame,
		Async:       async,
	}); err != nil {
		return err
	}

	res := pollResult(model)
	if res.Err != nil {
		return res.Err
	}
	fmt.Printf("%s %dx%d -> %s %dx%d in %s\n",
		input, inFrame.Width, inFrame.Height,
		output, outFrame.Width, outFrame.Height,
		time.Since(start).Round(time.Millisecond))

	outImg, err := outFrame.Image()
	if err != nil {
		return err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, outImg)
}

func pollResult(model *dnn.Model) *dnn.Result {
	for {
		res, status := model.GetResult()
		switch status {
		case dnn.StatusDone, dnn.StatusFailed:
			return res
		case dnn.StatusEmpty:
			return &dnn.Result{Err: fmt.Errorf("no task in flight")}
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run MODEL IMAGE",
		Short: "Run a model on an image",
		Args:  cobra.ExactArgs(2),
		RunE:  RunHandler,
	}
	runCmd.Flags().StringP("out", "o", "out.png", "Path of the result image")
	runCmd.Flags().String("input", "", "Name of the input operand")
	runCmd.Flags().String("output", "", "Name of the output operand")
	runCmd.Flags().Bool("async", false, "Submit asynchronously and poll for the result")
	return runCmd
}
