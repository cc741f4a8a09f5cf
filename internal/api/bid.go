package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/assignment-api/internal/store"
)

// handleCreateBid は提出物の作成を処理するハンドラを返す。
// 提出者が送ったフィールドはすべてそのまま保存する。
func (s *Server) handleCreateBid() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.String(http.StatusBadRequest, "Invalid request body")
			return
		}

		res, err := s.store.InsertBid(c.Request.Context(), raw)
		if err != nil {
			respondStoreError(c, err, "Error creating bid")
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleListPendingBids は採点待ちの提出物一覧を返すハンドラを返す。
func (s *Server) handleListPendingBids() gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := s.store.ListPendingBids(c.Request.Context())
		if err != nil {
			respondStoreError(c, err, "Error fetching pending bids")
			return
		}
		c.JSON(http.StatusOK, docs)
	}
}

// handleGetBid はIDによる提出物の取得を処理するハンドラを返す。
// 存在しない場合はnullを返す。
func (s *Server) handleGetBid() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := s.store.FindBid(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondStoreError(c, err, "Error fetching bid")
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

// handleReviewBid は提出物の採点を処理するハンドラを返す。
// givenMark、feedBack、statusだけを上書きし、対象が無ければ作成する。
func (s *Server) handleReviewBid() gin.HandlerFunc {
	return func(c *gin.Context) {
		var r store.BidReview
		if err := decodeStrict(c, &r); err != nil {
			c.String(http.StatusBadRequest, "Invalid request body")
			return
		}

		res, err := s.store.UpsertBidReview(c.Request.Context(), c.Param("id"), r)
		if err != nil {
			respondStoreError(c, err, "Error updating bid")
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleListBidsByEmail は受験者のメールアドレスによる提出物一覧を返すハンドラを返す。
func (s *Server) handleListBidsByEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := s.store.ListBidsByEmail(c.Request.Context(), c.Param("email"))
		if err != nil {
			respondStoreError(c, err, "Error fetching user's bids")
			return
		}
		c.JSON(http.StatusOK, docs)
	}
}
