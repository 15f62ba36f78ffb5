package gateway

import (
	"encoding/json"

	"github.com/voicecode/voiced/internal/resource"
	"github.com/voicecode/voiced/internal/wire"
)

// handleUploadFile is the framed-protocol twin of handleUpload: same
// resource.Save call, reached over an already-authenticated connection
// instead of a fresh Bearer-keyed HTTP request.
func (s *Server) handleUploadFile(conn *Connection, payload []byte) {
	var req wire.UploadFileRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		conn.send(s.Log, wire.NewError("malformed upload_file: "+err.Error(), ""))
		return
	}

	result, err := resource.Save(resource.UploadRequest{
		Filename:        req.Filename,
		Content:         req.Content,
		StorageLocation: req.StorageLocation,
	})
	if err != nil {
		conn.send(s.Log, wire.NewError(err.Error(), ""))
		return
	}

	conn.send(s.Log, wire.FileUploaded{
		Type:      "file_uploaded",
		Success:   true,
		Filename:  result.Filename,
		Path:      result.Path,
		Size:      result.Size,
		Timestamp: isoZ(result.Timestamp),
	})
}

func (s *Server) handleListResources(conn *Connection, payload []byte) {
	var req wire.ListResourcesRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.StorageLocation == "" {
		conn.send(s.Log, wire.NewError("list_resources requires storage_location", ""))
		return
	}

	names, err := resource.List(req.StorageLocation)
	if err != nil {
		conn.send(s.Log, wire.NewError(err.Error(), ""))
		return
	}

	conn.send(s.Log, wire.ResourcesList{Type: "resources_list", StorageLocation: req.StorageLocation, Filenames: names})
}

func (s *Server) handleDeleteResource(conn *Connection, payload []byte) {
	var req wire.DeleteResourceRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.StorageLocation == "" || req.Filename == "" {
		conn.send(s.Log, wire.NewError("delete_resource requires storage_location and filename", ""))
		return
	}

	errMsg := ""
	if err := resource.Delete(req.StorageLocation, req.Filename); err != nil {
		errMsg = err.Error()
	}

	conn.send(s.Log, wire.ResourceDeleted{
		Type:            "resource_deleted",
		StorageLocation: req.StorageLocation,
		Filename:        req.Filename,
		Success:         errMsg == "",
		Error:           errMsg,
	})
}
