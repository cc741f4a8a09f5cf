package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/assignment-api/internal/store"
)

// handleCreateAssignment は課題作成を処理するハンドラを返す。
// ボディはそのまま保存する。
func (s *Server) handleCreateAssignment() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.String(http.StatusBadRequest, "Invalid request body")
			return
		}

		res, err := s.store.InsertAssignment(c.Request.Context(), raw)
		if err != nil {
			respondStoreError(c, err, "Error creating assignment")
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleListAssignments は課題一覧取得を処理するハンドラを返す。
// クエリパラメータlevelが指定されていれば完全一致で絞り込む。
func (s *Server) handleListAssignments() gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := s.store.ListAssignments(c.Request.Context(), c.Query("level"))
		if err != nil {
			respondStoreError(c, err, "Error fetching assignments")
			return
		}
		c.JSON(http.StatusOK, docs)
	}
}

// handleUpdateAssignment は課題更新を処理するハンドラを返す。
// 6つのフィールドだけを上書きし、対象が無ければ作成する。
func (s *Server) handleUpdateAssignment() gin.HandlerFunc {
	return func(c *gin.Context) {
		var u store.AssignmentUpdate
		if err := decodeStrict(c, &u); err != nil {
			c.String(http.StatusBadRequest, "Invalid request body")
			return
		}

		res, err := s.store.UpsertAssignment(c.Request.Context(), c.Param("id"), u)
		if err != nil {
			respondStoreError(c, err, "Error updating assignment")
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleDeleteAssignment は課題削除を処理するハンドラを返す。
func (s *Server) handleDeleteAssignment() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.store.DeleteAssignment(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondStoreError(c, err, "Error deleting assignment")
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleCountAssignments は課題件数の取得を処理するハンドラを返す。
func (s *Server) handleCountAssignments() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.store.CountAssignments(c.Request.Context())
		if err != nil {
			respondStoreError(c, err, "Error fetching assignment count")
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}
