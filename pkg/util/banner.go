package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/common-nighthawk/go-figure"
)

// Color 终端 ANSI 颜色
type Color string

const (
	ColorReset Color = "\x1b[0m"
	ColorRed   Color = "\x1b[1;31m"
	ColorGreen Color = "\x1b[1;32m"
	ColorBlue  Color = "\x1b[1;34m"
	ColorCyan  Color = "\x1b[1;36m"
)

// PrintBanner 向 w 打印 ASCII banner，服务命令传 stderr 以保持 stdout 干净
func PrintBanner(w io.Writer, text string, color Color) {
	var b strings.Builder
	for _, line := range figure.NewFigure(text, "", true).Slicify() {
		b.WriteString(string(color) + line + string(ColorReset) + "\n")
	}
	_, _ = fmt.Fprint(w, b.String())
}
