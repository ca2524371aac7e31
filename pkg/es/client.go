// Package es 提供了与 Elasticsearch 交互的客户端功能，用于菜单的模糊检索。
package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"pizzabot-go/internal/config"
	"pizzabot-go/internal/model"
	"pizzabot-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// MenuIndex 保存菜单文档的索引。
type MenuIndex struct {
	client *elasticsearch.Client
	index  string
}

// menuDocument 是存储在 Elasticsearch 中的菜单文档结构。
type menuDocument struct {
	PizzaID     int      `json:"pizza_id"`
	Name        string   `json:"name"`
	Ingredients []string `json:"ingredients"`
	UnitPrice   float64  `json:"unit_price"`
	SoldOut     bool     `json:"sold_out"`
}

const menuMapping = `{
	"mappings": {
		"properties": {
			"pizza_id": { "type": "integer" },
			"name": {
				"type": "text",
				"fields": { "keyword": { "type": "keyword" } }
			},
			"ingredients": { "type": "text" },
			"unit_price": { "type": "float" },
			"sold_out": { "type": "boolean" }
		}
	}
}`

// InitES 初始化 Elasticsearch 客户端，并在索引不存在时创建它。
func InitES(esCfg config.ElasticsearchConfig) (*MenuIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
	})
	if err != nil {
		return nil, err
	}
	idx := &MenuIndex{client: client, index: esCfg.IndexName}
	if err := idx.createIndexIfNotExists(); err != nil {
		return nil, err
	}
	return idx, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (m *MenuIndex) createIndexIfNotExists() error {
	res, err := m.client.Indices.Exists([]string{m.index})
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", m.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = m.client.Indices.Create(
		m.index,
		m.client.Indices.Create.WithBody(strings.NewReader(menuMapping)),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", m.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", m.index, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}
	log.Infof("索引 '%s' 创建成功", m.index)
	return nil
}

// IndexMenu 以披萨 ID 作为文档 ID 把整份菜单写入索引。
func (m *MenuIndex) IndexMenu(ctx context.Context, menu []model.Pizza) error {
	for _, p := range menu {
		doc := menuDocument{
			PizzaID:     p.ID,
			Name:        p.Name,
			Ingredients: p.Ingredients,
			UnitPrice:   p.UnitPrice,
			SoldOut:     p.SoldOut,
		}
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		req := esapi.IndexRequest{
			Index:      m.index,
			DocumentID: strconv.Itoa(p.ID),
			Body:       bytes.NewReader(docBytes),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, m.client)
		if err != nil {
			return err
		}
		isErr := res.IsError()
		body := res.String()
		res.Body.Close()
		if isErr {
			log.Errorf("索引菜单到 Elasticsearch 出错: %s", body)
			return fmt.Errorf("failed to index pizza %d", p.ID)
		}
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source menuDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchNames 对披萨名称做模糊匹配，返回最多 size 个名称。
func (m *MenuIndex) SearchNames(ctx context.Context, query string, size int) ([]string, error) {
	body := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"name": map[string]interface{}{
					"query":     query,
					"fuzziness": "AUTO",
				},
			},
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req := esapi.SearchRequest{
		Index: []string{m.index},
		Body:  bytes.NewReader(b),
	}
	res, err := req.Do(ctx, m.client)
	if err != nil {
		return nil, fmt.Errorf("菜单检索失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("菜单检索返回错误: %s", res.Status())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("解析检索结果失败: %w", err)
	}
	names := make([]string, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		names = append(names, h.Source.Name)
	}
	return names, nil
}
