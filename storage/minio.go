package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"musichelper/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	minioClient *minio.Client
	bucketName  string
)

// InitMinio 初始化 MinIO 客户端
// 上传的原始音频会镜像一份到 MinIO，防止本地磁盘数据丢失
func InitMinio(cfg *config.Config) error {
	log.Printf("正在连接 MinIO 服务器...")
	log.Printf("Bucket: %s", cfg.MinioBucket)

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("创建 MinIO 客户端失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 检查存储桶是否存在
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %v", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		})
		if err != nil {
			return fmt.Errorf("创建存储桶失败: %v", err)
		}
		log.Printf("成功创建存储桶: %s", cfg.MinioBucket)
	} else {
		log.Printf("存储桶已存在: %s", cfg.MinioBucket)
	}

	minioClient = client
	bucketName = cfg.MinioBucket
	log.Println("MinIO 客户端初始化成功！")
	return nil
}

// GetMinioClient 获取 MinIO 客户端实例
func GetMinioClient() *minio.Client {
	return minioClient
}

// MirrorRawUpload 将本地上传的原始文件备份到 MinIO
// 对象路径为 raw/<savedFilename>
func MirrorRawUpload(ctx context.Context, localPath, savedFilename, contentType string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("打开本地文件失败: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("读取文件信息失败: %w", err)
	}

	objectPath := RawObjectPath(savedFilename)
	_, err = minioClient.PutObject(ctx, bucketName, objectPath, file, stat.Size(), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("上传到 MinIO 失败: %w", err)
	}
	return nil
}

// RemoveRawUpload 删除 MinIO 中的原始文件备份
func RemoveRawUpload(ctx context.Context, savedFilename string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	return minioClient.RemoveObject(ctx, bucketName, RawObjectPath(savedFilename), minio.RemoveObjectOptions{})
}

// RawObjectPath 原始音频备份在存储桶中的对象路径
func RawObjectPath(savedFilename string) string {
	return filepath.ToSlash(filepath.Join("raw", savedFilename))
}
