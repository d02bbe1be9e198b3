package gomafia

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"GomafiaSync/internal/model"
	"GomafiaSync/internal/syncerr"

	"github.com/PuerkitoBio/goquery"
)

// nextDataSelector Next.js 把页面数据序列化在这个 script 标签里
const nextDataSelector = "script#__NEXT_DATA__"

// ExtractBlob 从页面 HTML 中取出 __NEXT_DATA__ 并解析到 serverData。
// 只依赖 props.pageProps.serverData 这一条路径，其余字段忽略
func ExtractBlob(raw string) (*model.ServerData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, &syncerr.Error{Kind: syncerr.KindMalformedBlob, Err: fmt.Errorf("parse html: %w", err)}
	}

	script := doc.Find(nextDataSelector).First()
	if script.Length() == 0 {
		return nil, &syncerr.Error{Kind: syncerr.KindMarkerNotFound, Err: errors.New("<script id=\"__NEXT_DATA__\"> not found")}
	}

	text := strings.TrimSpace(script.Text())
	if text == "" {
		return nil, &syncerr.Error{Kind: syncerr.KindMalformedBlob, Err: errors.New("__NEXT_DATA__ is empty")}
	}

	var next model.NextData
	if err := json.Unmarshal([]byte(text), &next); err != nil {
		return nil, &syncerr.Error{Kind: syncerr.KindMalformedBlob, Err: fmt.Errorf("unmarshal __NEXT_DATA__: %w", err)}
	}
	if next.Props.PageProps.ServerData == nil {
		return nil, &syncerr.Error{Kind: syncerr.KindMalformedBlob, Err: errors.New("props.pageProps.serverData missing")}
	}
	return next.Props.PageProps.ServerData, nil
}
