package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/zhukovaskychina/xmysql-tde/server/common"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/pagefeat"
	"github.com/zhukovaskychina/xmysql-tde/server/innodb/storage/store/pages"
	"github.com/zhukovaskychina/xmysql-tde/util"
)

// 打印页面特性目录，以及(可选)某个数据页上各特性槽位的原始内容
func main() {
	var (
		dataDir  string
		setName  string
		catalog  string
		pageSize int
		pageFile string
		block    uint
	)
	flag.StringVar(&dataDir, "datadir", "", "数据目录")
	flag.StringVar(&setName, "set", "default", "页面特性集名称")
	flag.StringVar(&catalog, "catalog", "", "直接指定目录文件, 优先于 -datadir/-set")
	flag.IntVar(&pageSize, "page-size", common.DefaultBlockSize, "页大小")
	flag.StringVar(&pageFile, "page", "", "数据文件")
	flag.UintVar(&block, "block", 0, "页号")
	flag.Parse()

	if catalog == "" {
		if dataDir == "" {
			fmt.Fprintln(os.Stderr, "need -catalog or -datadir")
			os.Exit(2)
		}
		catalog = pagefeat.CatalogPath(dataDir, setName)
	}

	pfs, err := pagefeat.ReadPageFeatureSet(catalog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取页面特性目录失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== 页面特性集 ===")
	fmt.Printf("name:     %s\n", pfs.Name())
	fmt.Printf("features: %d\n", pfs.Count())
	fmt.Printf("reserved: %d bytes\n", pfs.BytesUsed())
	fmt.Printf("bitmap:   %s\n", util.FormatBitmap16(pfs.Bitmap()))
	fmt.Printf("\n%-20s %8s %8s %8s\n", "NAME", "OFFSET", "SIZE", "ABS")
	for _, f := range pfs.Features() {
		fmt.Printf("%-20s %8d %8d %8d\n", f.Name, f.Offset, f.Size, pageSize-f.Offset-f.Size)
	}

	if pageFile == "" {
		return
	}

	page, err := readRawPage(pageFile, pageSize, uint32(block))
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取页面失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== %s 第 %d 页 ===\n", pageFile, block)
	if page.IsNew() {
		fmt.Println("(空页)")
		return
	}
	fmt.Printf("lsn:      %d\n", page.LSN())
	fmt.Printf("space:    %d\n", page.SpaceID())
	fmt.Printf("page no:  %d\n", page.PageNo())
	fmt.Printf("type:     %d\n", page.Type())
	fmt.Printf("flags:    %#04x\n", uint16(page.Flags()))
	fmt.Printf("features: %s\n", util.FormatBitmap16(page.Features()))
	if err := pages.CheckFeatures(page, pfs); err != nil {
		fmt.Printf("WARNING: %v\n", err)
	}
	for _, f := range pfs.Features() {
		fmt.Printf("\n-- %s --\n", f.Name)
		fmt.Print(hex.Dump(page.FeatureSlot(pfs, f.Name)))
	}
}

func readRawPage(path string, pageSize int, block uint32) (pages.Page, error) {
	if _, err := common.NewBlockSize(pageSize, 0); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, pageSize)
	if _, err := f.ReadAt(buf, int64(block)*int64(pageSize)); err != nil {
		return nil, err
	}
	return pages.Page(buf), nil
}
