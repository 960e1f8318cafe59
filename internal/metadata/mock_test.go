package metadata

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/justyntemme/aladinkr/internal/fetch"
)

const testBaseURL = "http://catalog.test"

// MockFetcher serves canned pages keyed by URL and records every request
type MockFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	errs     map[string]error
	block    map[string]chan struct{}
	requests []string
	headers  map[string]http.Header
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		pages:   make(map[string]string),
		errs:    make(map[string]error),
		block:   make(map[string]chan struct{}),
		headers: make(map[string]http.Header),
	}
}

func (m *MockFetcher) Page(url, body string) *MockFetcher {
	m.pages[url] = body
	return m
}

func (m *MockFetcher) Fail(url string, err error) *MockFetcher {
	m.errs[url] = err
	return m
}

// Block holds requests for url until the returned channel is closed
func (m *MockFetcher) Block(url string) chan struct{} {
	ch := make(chan struct{})
	m.block[url] = ch
	return ch
}

func (m *MockFetcher) Fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	m.mu.Lock()
	m.requests = append(m.requests, url)
	m.headers[url] = header.Clone()
	body, ok := m.pages[url]
	err := m.errs[url]
	block := m.block[url]
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, &fetch.FetchError{URL: url, Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &fetch.FetchError{URL: url, StatusCode: http.StatusNotFound, Err: fetch.ErrBadStatus}
	}
	return []byte(body), nil
}

func (m *MockFetcher) Requested(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if r == url {
			n++
		}
	}
	return n
}

func (m *MockFetcher) Header(url string) http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.headers[url]
}

// stubPages is a PageOverride backed by a map
type stubPages map[string]string

func (s stubPages) SavedPage(catalogID string) ([]byte, error) {
	page, ok := s[catalogID]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(page), nil
}

const searchPage = `<html><head><title>검색 결과</title></head><body>
<div class="ss_book_list"><ul>
<li><a href="/shop/wproduct.aspx?ItemId=111" class="bo3">파운데이션</a></li>
<li><a href="/shop/wproduct.aspx?ItemId=222">제국</a> <a href="/shop/wproduct.aspx?ItemId=111">파운데이션</a></li>
<li><a href="/shop/wproduct.aspx?ItemId=">빈 링크</a></li>
<li><a href="/shop/wproduct.aspx?ItemId=333&amp;partnerid=x">제휴 링크</a></li>
<li><a href="/shop/wproduct.aspx?ItemId=333">로봇</a></li>
</ul></div>
<div class="ss_book_list_side"><a href="/shop/wproduct.aspx?ItemId=999">광고</a></div>
</body></html>`

const emptySearchPage = `<html><head><title>검색 결과</title></head><body>
<div class="ss_book_list"><ul></ul></div>
</body></html>`

const testCoverURL = "https://image.aladin.co.kr/product/2540/81/cover500/8960177423_1.jpg"

const detailPage = `<html><head>
<title>파운데이션 | 알라딘</title>
<meta name="title" content="파운데이션: 제국의 몰락 [양장]">
<meta name="author" content="메타 저자">
<meta itemprop="datePublished" content="2013-03-15">
<meta property="og:image" content="` + testCoverURL + `">
<meta property="books:isbn" content="9788960177420">
</head><body>
<div class="Ere_prod_titlewrap">
<span class="Ere_sub1_title">- 개정판</span>
<a class="Ere_sub1_title" href="/shop/common/wseriesitem.aspx?SRID=1">파운데이션 시리즈 3</a>
<a class="Ere_sub2_title" href="/search/wsearchresult.aspx?AuthorSearch=@1">아이작 아시모프</a>
<a class="Ere_sub2_title" href="/search/wsearchresult.aspx?AuthorSearch=@2">김옥수</a>
<a class="Ere_sub2_title" href="/search/wsearchresult.aspx?PublisherSearch=황금가지">황금가지</a>
</div>
<div class="info"><a class="Ere_sub_pink Ere_fs16 Ere_str" href="#">8</a></div>
<div class="Ere_btn_old"><a href="/shop/wproduct.aspx?ItemId=100">구판 보기</a></div>
<div class="conts_info_list1"><li>쪽수 : <b>320쪽</b></li><li>언어 : <b>한국어</b></li></div>
<ul id="ulCategory">
<li><a href="/shop/wbrowse.aspx?CID=1">소설</a> &gt; <a href="/shop/wbrowse.aspx?CID=2">SF</a></li>
<li><a href="/shop/wbrowse.aspx?CID=2">SF</a></li>
</ul>
</body></html>`

const minimalDetailPage = `<html><head><title>알라딘</title></head><body><p>상품 정보 없음</p></body></html>`

const restrictedPage = `<html><body><p>19세 미만 구독불가</p></body></html>`

const introFragmentPage = `<div class="Ere_prod_mconts_box">
<div class="Ere_prod_mconts_LS">책소개</div>
<div class="Ere_prod_mconts_R">은하 제국의 몰락을 그린다.</div>
</div>`

const publisherFragmentPage = `<div class="Ere_prod_mconts_box">
<div class="Ere_prod_mconts_LS">출판사 제공<br>책소개</div>
<div class="Ere_prod_mconts_R">잘린 소개</div>
<div id="div_PublisherDesc_All">전체 소개 접기</div>
</div>`
