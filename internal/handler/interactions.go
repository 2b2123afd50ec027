package handler

import (
	"net/http"
	"sort"
	"strconv"

	"agentwatch/internal/aggregator"
	"agentwatch/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type InteractionHandler interface {
	GetInteractions(c *gin.Context)
	GetGraph(c *gin.Context)
}

type interactionHandler struct {
	aggregator *aggregator.Aggregator
	logger     *zap.Logger
}

func NewInteractionHandler(agg *aggregator.Aggregator, logger *zap.Logger) InteractionHandler {
	return &interactionHandler{aggregator: agg, logger: logger}
}

func minStrength(c *gin.Context) (int64, bool) {
	raw := c.Query("min_strength")
	if raw == "" {
		return 1, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// GetInteractions handles GET /api/interactions?min_strength=
func (h *interactionHandler) GetInteractions(c *gin.Context) {
	strength, ok := minStrength(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_strength must be a non-negative integer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"interactions": h.aggregator.Edges(strength)})
}

// GetGraph handles GET /api/interactions/graph?min_strength=
func (h *interactionHandler) GetGraph(c *gin.Context) {
	strength, ok := minStrength(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_strength must be a non-negative integer"})
		return
	}
	c.JSON(http.StatusOK, BuildGraph(h.aggregator.Edges(strength)))
}

// BuildGraph turns edges into the node/link shape used for visualisation.
// A node's value is the summed strength of its incident edges.
func BuildGraph(edges []models.InteractionEdge) models.InteractionGraph {
	nodes := make(map[int64]*models.GraphNode)
	node := func(id int64, name string) *models.GraphNode {
		n, ok := nodes[id]
		if !ok {
			n = &models.GraphNode{ID: id, Name: name}
			nodes[id] = n
		}
		return n
	}

	graph := models.InteractionGraph{
		Nodes: []models.GraphNode{},
		Links: make([]models.GraphLink, 0, len(edges)),
	}
	for _, e := range edges {
		node(e.SourceAgentID, e.SourceAgentName).Value += e.Strength
		node(e.TargetAgentID, e.TargetAgentName).Value += e.Strength
		graph.Links = append(graph.Links, models.GraphLink{
			Source:   e.SourceAgentID,
			Target:   e.TargetAgentID,
			Type:     e.InteractionType,
			Strength: e.Strength,
		})
	}
	for _, n := range nodes {
		graph.Nodes = append(graph.Nodes, *n)
	}
	sort.Slice(graph.Nodes, func(i, j int) bool { return graph.Nodes[i].ID < graph.Nodes[j].ID })
	return graph
}
