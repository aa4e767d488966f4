// Command pdf2img rasterizes PDF pages to images using pdftoppm from
// poppler-utils. It feeds scanned documents into the OCR service one
// page at a time.
package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	dpi        int
	format     string
	outputDir  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "pdf2img [pdf]",
	Short: "Convert PDF pages to images",
	Long: `Convert each page of a PDF into an image suitable for OCR.

Examples:
  pdf2img scan.pdf
  pdf2img scan.pdf --dpi 150 --format jpeg --output-dir ./pages
  pdf2img scan.pdf --json`,
	Args:          cobra.ExactArgs(1),
	RunE:          runConvert,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var pagesCmd = &cobra.Command{
	Use:   "pages [pdf]",
	Short: "Print the page count of a PDF without rendering it",
	Long: `Report how many pages a PDF has, using pdfinfo from poppler-utils.

Examples:
  pdf2img pages scan.pdf
  pdf2img pages scan.pdf --json`,
	Args:          cobra.ExactArgs(1),
	RunE:          runPages,
	SilenceUsage:  true,
	SilenceErrors: true,
}

type jsonResult struct {
	Success   bool     `json:"success"`
	PageCount int      `json:"page_count,omitempty"`
	DPI       int      `json:"dpi,omitempty"`
	Format    string   `json:"format,omitempty"`
	Images    []string `json:"images,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func main() {
	rootCmd.Flags().IntVar(&dpi, "dpi", 300, "render resolution")
	rootCmd.Flags().StringVar(&format, "format", "png", "output format (png or jpeg)")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "", "directory to save images (default: <pdf dir>/extracted_images)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print a JSON document instead of plain output")
	rootCmd.AddCommand(pagesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	pdfPath := args[0]

	if err := validateFlags(); err != nil {
		return fail(err)
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return fail(fmt.Errorf("PDF not found: %s", pdfPath))
	}

	pages, err := convert(cmd, pdfPath)
	if err != nil {
		return fail(err)
	}

	if jsonOutput {
		return printJSON(pages)
	}
	return savePages(pdfPath, pages)
}

func runPages(cmd *cobra.Command, args []string) error {
	pdfPath := args[0]

	if _, err := os.Stat(pdfPath); err != nil {
		return fail(fmt.Errorf("PDF not found: %s", pdfPath))
	}

	count, err := pageCount(cmd, pdfPath)
	if err != nil {
		return fail(err)
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(jsonResult{Success: true, PageCount: count})
	}
	fmt.Printf("%d\n", count)
	return nil
}

// pageCount asks pdfinfo for the page count, which avoids rendering any
// page content.
func pageCount(cmd *cobra.Command, pdfPath string) (int, error) {
	toolPath, err := exec.LookPath("pdfinfo")
	if err != nil {
		return 0, fmt.Errorf("pdfinfo (poppler-utils) is required but not found in PATH")
	}

	output, err := exec.CommandContext(cmd.Context(), toolPath, pdfPath).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %w, output: %s", err, string(output))
	}
	return parsePageCount(output)
}

func parsePageCount(output []byte) (int, error) {
	for _, line := range strings.Split(string(output), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("unparseable page count in %q", strings.TrimSpace(line))
		}
		return count, nil
	}
	return 0, fmt.Errorf("pdfinfo output has no Pages field")
}

func validateFlags() error {
	switch strings.ToLower(format) {
	case "png":
		format = "png"
	case "jpeg", "jpg":
		format = "jpeg"
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if dpi <= 0 {
		return fmt.Errorf("dpi must be positive (got %d)", dpi)
	}
	return nil
}

// convert runs pdftoppm into a temp directory and returns the rendered
// pages in page order.
func convert(cmd *cobra.Command, pdfPath string) ([][]byte, error) {
	toolPath, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm (poppler-utils) is required but not found in PATH")
	}

	tmpDir, err := os.MkdirTemp("", "pdf2img-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	formatFlag := "-png"
	ext := ".png"
	if format == "jpeg" {
		formatFlag = "-jpeg"
		ext = ".jpg"
	}

	prefix := filepath.Join(tmpDir, "page")
	run := exec.CommandContext(cmd.Context(), toolPath,
		formatFlag, "-r", fmt.Sprint(dpi), pdfPath, prefix)
	if output, err := run.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w, output: %s", err, string(output))
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read temp dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ext) {
			names = append(names, entry.Name())
		}
	}
	// pdftoppm zero-pads page numbers, so name order is page order
	sort.Strings(names)

	pages := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read rendered page %s: %w", name, err)
		}
		pages = append(pages, data)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages")
	}
	return pages, nil
}

func printJSON(pages [][]byte) error {
	result := jsonResult{
		Success:   true,
		PageCount: len(pages),
		DPI:       dpi,
		Format:    format,
		Images:    make([]string, 0, len(pages)),
	}
	for _, page := range pages {
		result.Images = append(result.Images, base64.StdEncoding.EncodeToString(page))
	}
	return json.NewEncoder(os.Stdout).Encode(result)
}

func savePages(pdfPath string, pages [][]byte) error {
	dir := outputDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(pdfPath), "extracted_images")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(fmt.Errorf("failed to create output dir: %w", err))
	}

	stem := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	ext := "png"
	if format == "jpeg" {
		ext = "jpg"
	}

	for i, page := range pages {
		outPath := filepath.Join(dir, fmt.Sprintf("%s_page%d.%s", stem, i+1, ext))
		if err := os.WriteFile(outPath, page, 0o644); err != nil {
			return fail(fmt.Errorf("failed to write %s: %w", outPath, err))
		}
		fmt.Printf("Saved: %s\n", outPath)
	}

	fmt.Printf("\nConverted %d pages successfully!\n", len(pages))
	fmt.Printf("Output directory: %s\n", dir)
	return nil
}

// fail reports the error on the active output channel and returns it so
// cobra sets a non-zero exit code.
func fail(err error) error {
	if jsonOutput {
		json.NewEncoder(os.Stdout).Encode(jsonResult{Success: false, Error: err.Error()})
	} else {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	}
	return err
}
