// depthtospace.go - Kanal-zu-Raum Umordnung
//
// Enthaelt:
// - execDepthToSpace: verteilt Kanal-Bloecke auf ein feineres Raster

package ops

import (
	"fmt"

	"github.com/shubhanshu02/ffmpeg-1/fs/native"
)

func execDepthToSpace(layer *native.Layer, operands []native.Operand, params *native.DepthToSpaceParams) error {
	in, err := input(layer, operands, 0)
	if err != nil {
		return err
	}
	out := &operands[layer.Output]

	block := params.BlockSize
	height := in.Dims[1]
	width := in.Dims[2]
	channels := in.Dims[3]

	if channels%(block*block) != 0 {
		return fmt.Errorf("depth_to_space: %d channels not divisible by block %d squared", channels, block)
	}
	outChannels := channels / (block * block)

	out.Dims = [4]int32{1, height * block, width * block, outChannels}
	if err := out.Alloc(); err != nil {
		return err
	}
	outWidth := out.Dims[2]

	for y := int32(0); y < height; y++ {
		for x := int32(0); x < width; x++ {
			srcBase := (y*width + x) * channels
			for by := int32(0); by < block; by++ {
				for bx := int32(0); bx < block; bx++ {
					dstBase := ((y*block+by)*outWidth + x*block + bx) * outChannels
					blockBase := srcBase + (by*block+bx)*outChannels
					copy(out.Data[dstBase:dstBase+outChannels], in.Data[blockBase:blockBase+outChannels])
				}
			}
		}
	}
	return nil
}
